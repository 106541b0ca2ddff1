package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quill/internal/app"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/feed"
	"github.com/mmcdole/quill/internal/mutation"
)

// sessionCheckTimeout bounds the startup who-am-I request
const sessionCheckTimeout = 30 * time.Second

// env is what a screen needs to issue commands: the app and the scope of
// the current visit. ctx is canceled when the user leaves the screen.
type env struct {
	app *app.App
	ctx context.Context
	gen uint64
}

func (e *env) scope() scope {
	return scope{Gen: e.gen}
}

// writeCtx is the context writes run on. It outlives the screen: navigation
// never aborts a write the server may already be applying.
func (e *env) writeCtx() context.Context {
	return context.WithoutCancel(e.ctx)
}

// Command factories for async operations

// CheckSessionCmd resolves the persisted session once at startup
func CheckSessionCmd(a *app.App) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionCheckTimeout)
		defer cancel()

		return SessionResolvedMsg{Session: a.Start(ctx)}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// NavigateCmd asks the model to navigate to path
func NavigateCmd(path string) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Path: path}
	}
}

// listenSessionCmd returns a command that reads the next session snapshot
func listenSessionCmd(ch <-chan domain.Session) tea.Cmd {
	return func() tea.Msg {
		return SessionChangedMsg{Session: <-ch}
	}
}

// listenNoticesCmd returns a command that waits for the notice channel to change
func listenNoticesCmd(changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changed
		return NoticeChangedMsg{}
	}
}

// feedRunCmd performs a page request the controller committed to
func feedRunCmd(e *env, ctrl *feed.Controller, req feed.Request) tea.Cmd {
	return func() tea.Msg {
		return FeedLoadedMsg{scope: e.scope(), Err: ctrl.Run(e.ctx, req)}
	}
}

// feedRefreshCmd refetches every loaded page after a write
func feedRefreshCmd(e *env, ctrl *feed.Controller) tea.Cmd {
	return func() tea.Msg {
		return FeedLoadedMsg{scope: e.scope(), Err: ctrl.Refresh(e.ctx)}
	}
}

// loadPostCmd loads a single post through the cache
func loadPostCmd(e *env, postID int64) tea.Cmd {
	return func() tea.Msg {
		post, err := e.app.Content.FetchPost(e.ctx, postID)
		return PostLoadedMsg{scope: e.scope(), Post: post, Err: err}
	}
}

// loadUsersCmd loads the admin user listing through the cache
func loadUsersCmd(e *env) tea.Cmd {
	return func() tea.Msg {
		users, err := e.app.Content.FetchUsers(e.ctx)
		return UsersLoadedMsg{scope: e.scope(), Users: users, Err: err}
	}
}

// loadCommentsCmd loads the moderation listing through the cache
func loadCommentsCmd(e *env) tea.Cmd {
	return func() tea.Msg {
		comments, err := e.app.Content.FetchAdminComments(e.ctx)
		return CommentsLoadedMsg{scope: e.scope(), Comments: comments, Err: err}
	}
}

// mutateCmd runs one coordinator operation against target id
func mutateCmd(e *env, op mutation.Op, id int64) tea.Cmd {
	m := e.app.Mutations
	return func() tea.Msg {
		ctx := e.writeCtx()
		var err error
		switch op {
		case mutation.OpLike:
			err = m.Like(ctx, id)
		case mutation.OpUnlike:
			err = m.Unlike(ctx, id)
		case mutation.OpDeletePost:
			err = m.DeletePost(ctx, id)
		case mutation.OpApprove:
			err = m.ApproveComment(ctx, id)
		case mutation.OpBlock:
			err = m.BlockComment(ctx, id)
		}
		return MutationDoneMsg{scope: e.scope(), Op: op, ID: id, Err: err}
	}
}

// createCommentCmd submits a comment on postID
func createCommentCmd(e *env, postID int64, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := e.app.Mutations.CreateComment(e.writeCtx(), postID, text)
		return MutationDoneMsg{scope: e.scope(), Op: mutation.OpComment, ID: postID, Err: err}
	}
}

// createPostCmd uploads a new post
func createPostCmd(e *env, draft domain.PostDraft) tea.Cmd {
	return func() tea.Msg {
		post, err := e.app.Mutations.CreatePost(e.writeCtx(), draft)
		return PostCreatedMsg{scope: e.scope(), Post: post, Err: err}
	}
}

// loginCmd exchanges credentials for a session
func loginCmd(e *env, username, password string) tea.Cmd {
	return func() tea.Msg {
		sess, err := e.app.Session.Login(e.ctx, username, password)
		if err == nil {
			// The login screen is gone by the time this message arrives
			e.app.Notices.Success("Login successful!")
		}
		return LoginDoneMsg{scope: e.scope(), Session: sess, Err: err}
	}
}

// registerCmd creates an account
func registerCmd(e *env, reg domain.Registration) tea.Cmd {
	return func() tea.Msg {
		return RegisterDoneMsg{scope: e.scope(), Err: e.app.Session.Register(e.ctx, reg)}
	}
}

// LogoutCmd ends the session
func LogoutCmd(a *app.App) tea.Cmd {
	return func() tea.Msg {
		return LogoutDoneMsg{Err: a.Logout()}
	}
}
