package connector

import (
	"encoding/json"
	"strings"
)

// Type identifies the kind of data source a connection points at.
type Type string

const (
	TypeCSV  Type = "csv"
	TypeREST Type = "rest"
	TypeSQL  Type = "sql"
)

// CSVConfig holds inline CSV text and its parse options.
type CSVConfig struct {
	Data      string `json:"csvData"`
	Delimiter string `json:"delimiter,omitempty"`
	HasHeader *bool  `json:"hasHeader,omitempty"`
	QuoteChar string `json:"quoteChar,omitempty"`
}

// AuthConfig describes how to authenticate an outbound REST request.
type AuthConfig struct {
	Type     string `json:"type"` // "basic" or "bearer"
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// RESTConfig describes an outbound HTTP data source.
type RESTConfig struct {
	URL        string            `json:"url"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Auth       *AuthConfig       `json:"auth,omitempty"`
	Body       string            `json:"body,omitempty"`
	ResultPath string            `json:"resultPath,omitempty"`
}

// SQLConfig describes a SQL database, either as a full connection string or
// as discrete fields.
type SQLConfig struct {
	ConnectionString string `json:"connectionString,omitempty"`
	Host             string `json:"host,omitempty"`
	Port             int    `json:"port,omitempty"`
	Database         string `json:"database,omitempty"`
	User             string `json:"user,omitempty"`
	Password         string `json:"password,omitempty"`
	SSLMode          string `json:"sslmode,omitempty"`
}

// Connection is the typed form of a stored connection record. Exactly one of
// CSV, REST or SQL is set, matching Type.
type Connection struct {
	ID   uint
	Type Type
	CSV  *CSVConfig
	REST *RESTConfig
	SQL  *SQLConfig
}

// FromRecord decodes a stored {type, config} pair into a typed Connection.
// An unknown type or a config that does not decode is a ConfigError.
func FromRecord(id uint, connType string, config []byte) (Connection, error) {
	conn := Connection{ID: id, Type: Type(strings.ToLower(connType))}
	if len(config) == 0 {
		config = []byte("{}")
	}

	var err error
	switch conn.Type {
	case TypeCSV:
		conn.CSV = &CSVConfig{}
		err = json.Unmarshal(config, conn.CSV)
	case TypeREST:
		conn.REST = &RESTConfig{}
		err = json.Unmarshal(config, conn.REST)
	case TypeSQL:
		conn.SQL = &SQLConfig{}
		err = json.Unmarshal(config, conn.SQL)
	default:
		return Connection{}, configErrorf("unsupported connection type %q", connType)
	}
	if err != nil {
		return Connection{}, configErrorf("invalid %s config: %v", conn.Type, err)
	}
	return conn, nil
}

// Dataset is a stored query or table reference bound to a connection.
type Dataset struct {
	ID    uint
	Query string
	Table string
}

// Column is a name/type pair from a table's schema.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
