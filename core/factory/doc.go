// Package factory instantiates pluggable modules, such as metrics sinks and
// control log stores, from configuration. A module is named by a type string
// and configured by a map of raw settings that the factory decodes into a
// typed struct.
//
//	reg := factory.NewRegistry[io.Reader]()
//	reg.Register("file", func(conf map[string]any) (io.Reader, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return os.Open(c.Path)
//	})
package factory
