// Package knowledge holds the persistent knowledge store backends: SQLite
// for a single node, a rotated JSONL journal, and PostgreSQL through gorm.
package knowledge

import (
	"github.com/kilianp07/mtrr/core/factory"
	"github.com/kilianp07/mtrr/core/knowledge"
)

// init registers the built-in backends.
func init() {
	_ = knowledge.RegisterStore("sqlite", func(conf map[string]any) (knowledge.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "mtrr.db"
		}
		return NewSQLiteStore(c.Path)
	})

	_ = knowledge.RegisterStore("jsonl", func(conf map[string]any) (knowledge.Store, error) {
		var c JSONLConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c)
	})

	_ = knowledge.RegisterStore("postgres", func(conf map[string]any) (knowledge.Store, error) {
		var c PostgresConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPostgresStore(c)
	})
}
