// Package factory instantiates pluggable backends (knowledge stores, metrics
// sinks) from configuration. A backend is selected by a type string and
// receives its raw settings, which it decodes with Decode:
//
//	reg := factory.NewRegistry[knowledge.Store]()
//	reg.Register("sqlite", func(conf map[string]any) (knowledge.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewSQLiteStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "mtrr.db"}})
package factory
