package parser

import (
	"fmt"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadRules reads a rule overlay from a JSON file. Tables the file leaves
// out keep their defaults, see Rules.WithDefaults.
func LoadRules(path string) (Rules, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return Rules{}, fmt.Errorf("loading rules %s: %w", path, err)
	}

	var r Rules
	if err := k.UnmarshalWithConf("", &r, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return Rules{}, fmt.Errorf("decoding rules %s: %w", path, err)
	}
	return r.WithDefaults(), nil
}
