package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/authbroker/pkg/oauth"
)

// providersFile is the YAML layout:
//
//	providers:
//	  - id: wechat
//	    dialect: wechat
//	    client_id: ${WECHAT_APP_ID}
//	    client_secret: ${WECHAT_APP_SECRET}
//	    redirect_uri: https://auth.example.com/auth/wechat/callback
type providersFile struct {
	Providers []oauth.ProviderConfig `yaml:"providers"`
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadProviders reads provider configs from a YAML file.
func LoadProviders(path string) ([]oauth.ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrReadProviders, err)
	}
	return ParseProviders(raw)
}

// ParseProviders decodes provider configs from YAML. ${VAR} references in
// scalar values are replaced with environment values after parsing, so a
// value may hold a multi-line PEM key. A reference to an unset variable is
// an error; bare $ signs are left alone.
func ParseProviders(raw []byte) ([]oauth.ProviderConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, errors.Join(ErrReadProviders, err)
	}

	var missing []string
	expandNode(&root, &missing)
	if len(missing) > 0 {
		return nil, errors.Join(ErrMissingVariable, fmt.Errorf("%v", missing))
	}

	var f providersFile
	if err := root.Decode(&f); err != nil {
		return nil, errors.Join(ErrReadProviders, err)
	}
	return f.Providers, nil
}

func expandNode(n *yaml.Node, missing *[]string) {
	if n.Kind == yaml.ScalarNode {
		v := placeholder.ReplaceAllStringFunc(n.Value, func(m string) string {
			name := placeholder.FindStringSubmatch(m)[1]
			v, ok := os.LookupEnv(name)
			if !ok && !slices.Contains(*missing, name) {
				*missing = append(*missing, name)
			}
			return v
		})
		if v != n.Value {
			n.Value = v
			// Plain scalars were tagged !!str when they held the
			// placeholder; let the expanded value resolve again.
			if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
				n.Tag = ""
			}
		}
		return
	}
	for _, c := range n.Content {
		expandNode(c, missing)
	}
}
