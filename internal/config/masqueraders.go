package config

import (
	"fmt"

	"github.com/hopcore/hopcore/internal/discriminator"
)

// BuildMasqueraders resolves DiscriminatorConfig.Masqueraders to
// concrete, ordered discriminator.Masquerader instances.
func BuildMasqueraders(names []string) ([]discriminator.Masquerader, error) {
	out := make([]discriminator.Masquerader, 0, len(names))
	for _, name := range names {
		switch name {
		case "native":
			out = append(out, discriminator.NewNativeMasquerader())
		case "http-chunk":
			out = append(out, discriminator.NewHTTPChunkMasquerader())
		default:
			return nil, fmt.Errorf("unknown masquerader: %s", name)
		}
	}
	return out, nil
}
