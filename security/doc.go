// Package security guards outbound requests made on behalf of workflow
// nodes.
//
// URLGuard vets image and video URLs before anything is fetched: only
// http(s), bounded inline data images and local upload paths pass, and
// hosts on loopback, private, link-local or cloud metadata addresses are
// refused.
//
//	guard := security.NewURLGuard(security.GuardConfig{ResolveHosts: true})
//	if err := guard.CheckImage(ctx, url); err != nil {
//	    return err // *errors.AppError with code UNSAFE_URL
//	}
package security
