package cache

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DataType tags a payload so SetByType can pick its TTL.
type DataType string

const (
	DataAPI     DataType = "api"
	DataUser    DataType = "user"
	DataTenant  DataType = "tenant"
	DataChat    DataType = "chat"
	DataSession DataType = "session"
)

// DataTypes lists every known DataType.
var DataTypes = []DataType{DataAPI, DataUser, DataTenant, DataChat, DataSession}

// ParseDataType returns the DataType named s, ignoring case.
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DataTypes {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Newf("cache: unknown data type %q", s)
}

// TTLFor returns the TTL used for data of type t. Chat data changes too often
// to be kept for long and gets the memory TTL; every other type, including
// unknown ones, gets the default TTL.
func (s *Store) TTLFor(t DataType) time.Duration {
	if t == DataChat {
		return s.cfg.memoryTTL
	}
	return s.cfg.defaultTTL
}
