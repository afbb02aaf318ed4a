package connector

import (
	"fmt"
)

// Settings carries the credentials and endpoints one service needs. The
// config layer fills it from the services table; connectors read only the
// fields relevant to their vendor.
type Settings struct {
	Token   string // API key / bearer token
	BaseURL string // Override for the vendor API root (tests, proxies)
}

// New constructs a connector for the given vendor type. The name is the
// registry key the operator chose; multiple services of the same type can
// coexist under different names.
func New(name, vendorType string, s Settings) (Connector, error) {
	switch vendorType {
	case "github":
		return NewGitHub(name, s), nil
	case "slack":
		return NewSlack(name, s), nil
	case "stripe":
		return NewStripe(name, s), nil
	case "render":
		return NewRender(name, s), nil
	case "openai":
		return NewOpenAI(name, s), nil
	case "anthropic":
		return NewAnthropic(name, s), nil
	default:
		return nil, fmt.Errorf("unknown connector type %q for service %s", vendorType, name)
	}
}
