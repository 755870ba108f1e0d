package engine

import (
	"context"

	"github.com/psds-microservice/support-bot/internal/cache"
)

// LanguageName — отображаемое имя языка для промпта переводчика
// (name_ru из каталога); при отсутствии в каталоге — сам код.
func LanguageName(ctx context.Context, c *cache.Cache, code string) string {
	langs, err := c.Languages(ctx)
	if err != nil {
		return code
	}
	for _, l := range langs {
		if l.Code == code {
			return l.NameRu
		}
	}
	return code
}
