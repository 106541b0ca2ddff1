package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sfuzzy "github.com/sahilm/fuzzy"

	"github.com/mmcdole/quill/internal/domain"
)

// PostResult is a matching post with highlight positions in its title
type PostResult struct {
	Post           domain.Post
	MatchedIndexes []int // Rune positions in Post.Title that matched
	Score          int   // Higher is better
}

// postIndex implements sahilm/fuzzy.Source over lowercase "title author" text
type postIndex struct {
	posts  []domain.Post
	text   []string
	titles []int // byte length of each lowered title within text
}

func (idx *postIndex) String(i int) string { return idx.text[i] }
func (idx *postIndex) Len() int            { return len(idx.posts) }

func newPostIndex(posts []domain.Post) *postIndex {
	idx := &postIndex{posts: posts, text: make([]string, len(posts)), titles: make([]int, len(posts))}
	for i, p := range posts {
		title := strings.ToLower(p.Title)
		idx.text[i] = title + " " + strings.ToLower(p.Author.DisplayName())
		idx.titles[i] = len(title)
	}
	return idx
}

// titlePositions turns byte offsets into the indexed text of post i into
// rune positions in its title. Offsets in the author part are dropped.
func (idx *postIndex) titlePositions(i int, offsets []int) []int {
	text := idx.text[i]
	limit := idx.titles[i]
	var out []int
	for _, off := range offsets {
		if off >= limit {
			continue
		}
		out = append(out, utf8.RuneCountInString(text[:off]))
	}
	return out
}

// FilterPosts fuzzy matches query against post titles and authors.
// An empty query returns every post in its original order.
func FilterPosts(query string, posts []domain.Post) []PostResult {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]PostResult, len(posts))
		for i, p := range posts {
			out[i] = PostResult{Post: p}
		}
		return out
	}

	idx := newPostIndex(posts)
	matches := sfuzzy.FindFrom(strings.ToLower(query), idx)

	out := make([]PostResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, PostResult{
			Post:           posts[m.Index],
			MatchedIndexes: idx.titlePositions(m.Index, m.MatchedIndexes),
			Score:          m.Score,
		})
	}
	return out
}

// UserResult is a matching user and its edit distance to the query
type UserResult struct {
	User     domain.User
	Distance int // Lower is better
}

// FilterUsers matches query against usernames and emails, case-insensitively.
// Results are ordered by closeness, then username.
func FilterUsers(query string, users []domain.User) []UserResult {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]UserResult, len(users))
		for i, u := range users {
			out[i] = UserResult{User: u}
		}
		return out
	}

	targets := make([]string, len(users))
	for i, u := range users {
		targets[i] = u.Username + " " + u.Email
	}

	ranks := fuzzy.RankFindFold(query, targets)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return users[ranks[i].OriginalIndex].Username < users[ranks[j].OriginalIndex].Username
	})

	out := make([]UserResult, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, UserResult{User: users[r.OriginalIndex], Distance: r.Distance})
	}
	return out
}
