package contenttype

var cacheControl = map[Category]string{
	CategoryHTML:    "no-cache, no-store, must-revalidate, proxy-revalidate",
	CategoryCSS:     "public, max-age=3600, s-maxage=7200, stale-while-revalidate=86400",
	CategoryJS:      "public, max-age=3600, s-maxage=7200, stale-while-revalidate=86400",
	CategoryImage:   "public, max-age=86400, s-maxage=604800, stale-while-revalidate=2592000",
	CategoryFont:    "public, max-age=604800, s-maxage=2592000, immutable",
	CategoryWASM:    "public, max-age=3600, s-maxage=7200",
	CategoryJSON:    "public, max-age=300, s-maxage=600",
	CategoryDefault: "public, max-age=300, s-maxage=600",
}

// CacheControl returns the Cache-Control value for a category.
func CacheControl(c Category) string {
	if v, ok := cacheControl[c]; ok {
		return v
	}
	return cacheControl[CategoryDefault]
}

// Compressible reports whether a category benefits from gzip.
func Compressible(c Category) bool {
	switch c {
	case CategoryHTML, CategoryCSS, CategoryJS, CategoryJSON, CategoryWASM:
		return true
	}
	return false
}
