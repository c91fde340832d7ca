// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// I18nMiddleware picks the first supported language from Accept-Language.
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}

	return func(c *gin.Context) {
		lang := defaultLang

		// Handle cases like "zh-TW,zh;q=0.9,en;q=0.8"
		for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
			if supported, ok := normalizeLang(strings.TrimSpace(strings.Split(part, ";")[0])); ok {
				lang = supported
				break
			}
		}

		c.Set("lang", lang)
		c.Next()
	}
}

func normalizeLang(tag string) (string, bool) {
	switch strings.ToLower(strings.ReplaceAll(tag, "_", "-")) {
	case "zh-tw", "zh-hant", "zh-hk":
		return "zh_TW", true
	case "en", "en-us", "en-gb":
		return "en", true
	}
	return "", false
}
