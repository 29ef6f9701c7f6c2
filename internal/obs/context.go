package obs

import (
	"context"
	"sort"
	"sync"
)

type routePatternKey struct{}

type requestTagsKey struct{}

// requestTags collects fields a handler wants on its access log line, such as
// the checkout reference it opened. RequestLogger installs one per request.
type requestTags struct {
	mu     sync.Mutex
	fields map[string]string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestTags attaches an empty tag set to ctx. A ctx that already has one
// is returned unchanged.
func WithRequestTags(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(requestTagsKey{}).(*requestTags); ok {
		return ctx
	}
	return context.WithValue(ctx, requestTagsKey{}, &requestTags{fields: map[string]string{}})
}

// Tag records key=value for the request's access log. It is a no-op outside
// RequestLogger or for empty values.
func Tag(ctx context.Context, key, value string) {
	if ctx == nil || key == "" || value == "" {
		return
	}
	tags, ok := ctx.Value(requestTagsKey{}).(*requestTags)
	if !ok {
		return
	}
	tags.mu.Lock()
	tags.fields[key] = value
	tags.mu.Unlock()
}

// TagsFromContext returns the recorded tags as sorted key/value pairs.
func TagsFromContext(ctx context.Context) [][2]string {
	if ctx == nil {
		return nil
	}
	tags, ok := ctx.Value(requestTagsKey{}).(*requestTags)
	if !ok {
		return nil
	}
	tags.mu.Lock()
	defer tags.mu.Unlock()
	out := make([][2]string, 0, len(tags.fields))
	for k, v := range tags.fields {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
