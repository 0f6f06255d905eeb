package telemetry

import "context"

type fieldsKey struct{}

// WithFields returns a context whose log fields include fields.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	merged := make(map[string]any, len(fields))
	for k, v := range FieldsFrom(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFrom returns a copy of the log fields stored on ctx.
func FieldsFrom(ctx context.Context) map[string]any {
	if ctx == nil {
		return map[string]any{}
	}
	stored, _ := ctx.Value(fieldsKey{}).(map[string]any)
	out := make(map[string]any, len(stored)+4)
	for k, v := range stored {
		out[k] = v
	}
	return out
}
