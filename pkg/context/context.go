package context

import "context"

type ContextKey string

var (
	RequestIDKey   = ContextKey("X-Request-Id")
	MethodKey      = ContextKey("X-Method")
	RouteKey       = ContextKey("X-Route")
	RemoteIPKey    = ContextKey("X-Remote-Ip")
	UserIDKey      = ContextKey("X-User-Id")
	PartnerBpnlKey = ContextKey("Edc-Bpn")
	JobIDKey       = ContextKey("X-Job-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return getString(ctx, UserIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getString(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getString(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getString(ctx, RemoteIPKey)
}

// SetPartnerBpnl stores the BPNL of the partner whose connector forwarded the request.
func SetPartnerBpnl(ctx context.Context, bpnl string) context.Context {
	return context.WithValue(ctx, PartnerBpnlKey, bpnl)
}

func GetPartnerBpnl(ctx context.Context) string {
	return getString(ctx, PartnerBpnlKey)
}

func SetJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func GetJobID(ctx context.Context) string {
	return getString(ctx, JobIDKey)
}

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}
