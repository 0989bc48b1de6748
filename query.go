package ldapcp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/Yvand/LDAPCP-sub000/directory"
)

// objectClassAttribute is requested on every search so the consolidator
// can classify rows.
const objectClassAttribute = "objectClass"

// Row is one directory entry tagged with the domain of the connection
// that produced it.
type Row struct {
	DN            string
	Classes       []string
	Attributes    map[string][]string
	RawAttributes map[string][][]byte
	DomainName    string
	DomainFQDN    string
}

// HasClass reports whether the row's object class list contains class,
// case-insensitively.
func (r *Row) HasClass(class string) bool {
	for _, c := range r.Classes {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// AttributeValue returns the first value of the named attribute, or "".
func (r *Row) AttributeValue(name string) string {
	for attr, values := range r.Attributes {
		if strings.EqualFold(attr, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// RawAttributeValue returns the first raw value of the named attribute.
func (r *Row) RawAttributeValue(name string) []byte {
	for attr, values := range r.RawAttributes {
		if strings.EqualFold(attr, name) && len(values) > 0 {
			return values[0]
		}
	}
	return nil
}

// queryEngine fans a search out over every connection concurrently.
// Each connection failure is logged and contributes zero rows; the
// query succeeds with whatever the other connections produced.
type queryEngine struct {
	filters FilterBuilder
	log     directory.Logger
}

func newQueryEngine(filters FilterBuilder, log directory.Logger) *queryEngine {
	return &queryEngine{filters: filters, log: log}
}

// Query runs the operation's filter against all connections and
// returns the merged rows. It returns ErrNoDirectoryConfigured when
// the context carries zero connections.
func (q *queryEngine) Query(ctx context.Context, op *OperationContext) ([]*Row, error) {
	if len(op.Connections) == 0 {
		return nil, ErrNoDirectoryConfigured
	}

	attributes := q.requestedAttributes(op)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		rows []*Row
	)
	for _, conn := range op.Connections {
		wg.Add(1)
		go func(conn *Connection) {
			defer wg.Done()

			connRows, err := q.queryConnection(ctx, op, conn, attributes)
			if err != nil {
				q.log.Warn("Directory connection contributed no results", map[string]any{
					"connection": conn.Name,
					"error":      err.Error(),
				})
				return
			}

			mu.Lock()
			rows = append(rows, connRows...)
			mu.Unlock()
		}(conn)
	}
	wg.Wait()

	q.log.Debug("Directory query completed", map[string]any{
		"operation":   op.Kind.String(),
		"connections": len(op.Connections),
		"rows":        len(rows),
	})
	return rows, nil
}

// queryConnection searches one connection with its own timeout and tags
// every row with the connection's domain.
func (q *queryEngine) queryConnection(ctx context.Context, op *OperationContext, conn *Connection, attributes []string) ([]*Row, error) {
	var timeout time.Duration
	if op.settings != nil {
		timeout = op.settings.SearchTimeout
	}
	connCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	domain, err := conn.DomainInfo(connCtx)
	if err != nil {
		return nil, err
	}

	filter := q.filters.Build(op, conn)
	if filter == "" {
		return nil, nil
	}

	sizeLimit := 0
	if op.settings != nil {
		sizeLimit = op.settings.MaxSearchResults
	}

	result, err := conn.Client().Search(connCtx, &directory.SearchRequest{
		BaseDN:     domain.DN,
		Scope:      directory.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: attributes,
		SizeLimit:  sizeLimit,
		TimeLimit:  timeout,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*Row, 0, len(result.Entries))
	for _, entry := range result.Entries {
		rows = append(rows, entryToRow(entry, domain))
	}
	return rows, nil
}

// requestedAttributes collects the object class attribute plus every
// attribute any applicable config references.
func (q *queryEngine) requestedAttributes(op *OperationContext) []string {
	seen := map[string]bool{strings.ToLower(objectClassAttribute): true}
	attributes := []string{objectClassAttribute}

	add := func(name string) {
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			attributes = append(attributes, name)
		}
	}

	for _, config := range op.Configs {
		add(config.DirectoryAttribute)
		add(config.DisplayAttribute)
	}
	if op.collection != nil {
		for _, config := range op.collection.MetadataConfigs() {
			add(config.DirectoryAttribute)
		}
	}
	return attributes
}

func entryToRow(entry *ldap.Entry, domain *directory.DomainInfo) *Row {
	row := &Row{
		DN:            entry.DN,
		Attributes:    make(map[string][]string, len(entry.Attributes)),
		RawAttributes: make(map[string][][]byte, len(entry.Attributes)),
		DomainName:    domain.Name,
		DomainFQDN:    domain.FQDN,
	}
	for _, attr := range entry.Attributes {
		if strings.EqualFold(attr.Name, objectClassAttribute) {
			row.Classes = attr.Values
		}
		row.Attributes[attr.Name] = attr.Values
		row.RawAttributes[attr.Name] = attr.ByteValues
	}
	return row
}
