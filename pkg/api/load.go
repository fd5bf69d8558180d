package api

import (
	"fmt"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadDirectory reads a directory from a JSON file. A file that omits
// categories or accounts keeps the defaults for that list.
func LoadDirectory(path string) (Directory, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return Directory{}, fmt.Errorf("loading directory %s: %w", path, err)
	}

	var d Directory
	if err := k.UnmarshalWithConf("", &d, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return Directory{}, fmt.Errorf("decoding directory %s: %w", path, err)
	}

	def := DefaultDirectory()
	if len(d.Categories) == 0 {
		d.Categories = def.Categories
	}
	if len(d.Accounts) == 0 {
		d.Accounts = def.Accounts
	}
	return d, nil
}
