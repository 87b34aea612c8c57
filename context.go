package authx

import "context"

type claimsKey struct{}

// BindClaims stores decoded claims inside the context for downstream handlers.
func BindClaims[A, U, X any](ctx context.Context, claims *Claims[A, U, X]) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext retrieves claims previously stored by BindClaims. The
// type parameters must match the ones the claims were bound with.
func ClaimsFromContext[A, U, X any](ctx context.Context) (*Claims[A, U, X], bool) {
	if ctx == nil {
		return nil, false
	}
	value := ctx.Value(claimsKey{})
	if value == nil {
		return nil, false
	}
	claims, ok := value.(*Claims[A, U, X])
	return claims, ok && claims != nil
}
