package guard

import (
	"strconv"
	"strings"

	"github.com/mmcdole/quill/internal/domain"
)

// Requirement is the access level a route demands
type Requirement int

const (
	Public Requirement = iota
	GuestOnly
	Authenticated
	Staff
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case GuestOnly:
		return "guest"
	case Authenticated:
		return "authenticated"
	case Staff:
		return "staff"
	}
	return "unknown"
}

// Route names a screen in the application
type Route string

const (
	RouteHome          Route = "/"
	RouteLogin         Route = "/login"
	RouteRegister      Route = "/register"
	RouteDashboard     Route = "/dashboard"
	RoutePosts         Route = "/posts"
	RoutePostDetail    Route = "/posts/:id"
	RouteAdminUsers    Route = "/admin/users"
	RouteAdminPosts    Route = "/admin/posts"
	RouteAdminComments Route = "/admin/comments"
)

// requirements is the route table
var requirements = map[Route]Requirement{
	RouteHome:          Public,
	RouteLogin:         GuestOnly,
	RouteRegister:      GuestOnly,
	RouteDashboard:     Authenticated,
	RoutePosts:         Authenticated,
	RoutePostDetail:    Authenticated,
	RouteAdminUsers:    Staff,
	RouteAdminPosts:    Staff,
	RouteAdminComments: Staff,
}

// RequirementFor returns the requirement of a route; unknown routes are public
func RequirementFor(r Route) Requirement {
	if req, ok := requirements[r]; ok {
		return req
	}
	return Public
}

// Decision is the outcome of a guard check
type Decision struct {
	Allow      bool
	RedirectTo Route
}

// Evaluate decides access from session facts alone. It has no side
// effects and performs no I/O.
func Evaluate(isAuthenticated, isStaff bool, req Requirement) Decision {
	switch req {
	case GuestOnly:
		if isAuthenticated {
			return Decision{RedirectTo: RoutePosts}
		}
	case Authenticated:
		if !isAuthenticated {
			return Decision{RedirectTo: RouteLogin}
		}
	case Staff:
		if !isAuthenticated || !isStaff {
			return Decision{RedirectTo: RouteLogin}
		}
	}
	return Decision{Allow: true}
}

// Check evaluates route against a session snapshot
func Check(s domain.Session, route Route) Decision {
	return Evaluate(s.IsAuthenticated, s.IsStaff(), RequirementFor(route))
}

// Location is a parsed path: the route pattern plus its post id, if any
type Location struct {
	Route  Route
	PostID int64
}

// Path renders the location back to a concrete path
func (l Location) Path() string {
	if l.Route == RoutePostDetail {
		return "/posts/" + strconv.FormatInt(l.PostID, 10)
	}
	return string(l.Route)
}

// Match parses a concrete path such as /posts/42
func Match(path string) (Location, bool) {
	path = "/" + strings.Trim(path, "/")
	if _, ok := requirements[Route(path)]; ok && Route(path) != RoutePostDetail {
		return Location{Route: Route(path)}, true
	}

	rest, ok := strings.CutPrefix(path, "/posts/")
	if !ok {
		return Location{}, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return Location{}, false
	}
	return Location{Route: RoutePostDetail, PostID: id}, true
}
