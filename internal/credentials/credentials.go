// Package credentials loads Azure resource credentials from a CSV file.
//
// The file starts with a header line; every following line is
// resource,key,endpoint. Lines with a different number of fields are ignored.
package credentials

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when no credentials exist for a resource.
var ErrNotFound = errors.New("credentials not found")

// Credentials are the subscription key and REST endpoint of one Azure resource.
type Credentials struct {
	Key      string
	Endpoint string
}

// Manager holds the credentials of every resource listed in the file.
type Manager struct {
	credentials map[string]Credentials
}

// Load reads the credentials CSV at path.
func Load(path string) (*Manager, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s must be a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads credentials from r. The first record is treated as a header.
func Parse(r io.Reader) (*Manager, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	m := &Manager{credentials: make(map[string]Credentials)}
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) != 3 {
			continue
		}

		resource := strings.TrimSpace(record[0])
		if resource == "" {
			continue
		}
		m.credentials[resource] = Credentials{
			Key:      strings.TrimSpace(record[1]),
			Endpoint: normalizeEndpoint(record[2]),
		}
	}

	return m, nil
}

// New builds a Manager from an in-memory map.
func New(creds map[string]Credentials) *Manager {
	m := &Manager{credentials: make(map[string]Credentials, len(creds))}
	for resource, c := range creds {
		c.Endpoint = normalizeEndpoint(c.Endpoint)
		m.credentials[resource] = c
	}
	return m
}

// Get returns the credentials associated with resource.
func (m *Manager) Get(resource string) (Credentials, error) {
	creds, ok := m.credentials[resource]
	if !ok {
		return Credentials{}, fmt.Errorf("%w for resource '%s'", ErrNotFound, resource)
	}
	return creds, nil
}

// Resources lists the loaded resource names in sorted order.
func (m *Manager) Resources() []string {
	names := make([]string, 0, len(m.credentials))
	for name := range m.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeEndpoint makes sure service paths can be appended to the endpoint.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}
