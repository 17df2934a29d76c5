package session

import "context"

func (a *Access) CookieCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jar.Len()
}

func (a *Access) VerifyReason(ctx context.Context) string {
	return a.verify(ctx).String()
}
