package rbac

// Paths are the redirect targets used by page admission.
type Paths struct {
	SignIn  string
	Landing string
}

// DefaultPaths are used when no paths are configured.
var DefaultPaths = Paths{SignIn: "/signin", Landing: "/dashboard"}

// Admission is the outcome of checking a page route.
type Admission struct {
	Allowed bool
	// Pending is set while the session is still being resolved.
	Pending  bool
	Redirect string
}

// Admit applies the page admission rule with DefaultPaths.
func Admit(state State, grants Grants, perm string) Admission {
	return DefaultPaths.Admit(state, grants, perm)
}

// Admit decides whether a page requiring perm may render. Unauthenticated
// visitors go to sign-in; users lacking perm are sent to the landing page
// without an error. An empty perm only requires authentication.
func (p Paths) Admit(state State, grants Grants, perm string) Admission {
	switch state {
	case StateLoading:
		return Admission{Pending: true}
	case StateUnauthenticated:
		return Admission{Redirect: p.signIn()}
	}
	if perm != "" && !grants.HasPermission(perm) {
		return Admission{Redirect: p.landing()}
	}
	return Admission{Allowed: true}
}

func (p Paths) signIn() string {
	if p.SignIn == "" {
		return DefaultPaths.SignIn
	}
	return p.SignIn
}

func (p Paths) landing() string {
	if p.Landing == "" {
		return DefaultPaths.Landing
	}
	return p.Landing
}
