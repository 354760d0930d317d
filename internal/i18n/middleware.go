package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type langCtxKey struct{}

// Middleware injects a localizer into every request context, preferring the
// request's Accept-Language and falling back to defaultLang.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept := r.Header.Get("Accept-Language")
			loc := NewLocalizer(accept, defaultLang)
			ctx := WithLocalizer(r.Context(), loc)
			ctx = context.WithValue(ctx, langCtxKey{}, matchLang(accept, defaultLang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LangFromContext returns the base language chosen for the request, or "en".
func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langCtxKey{}).(string); ok && l != "" {
		return l
	}
	return "en"
}

// matchLang picks the loaded language that best fits an Accept-Language value.
func matchLang(accept, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 || bundle == nil {
		return fallback
	}
	supported := bundle.LanguageTags()
	_, idx, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return fallback
	}
	base, _ := supported[idx].Base()
	return base.String()
}
