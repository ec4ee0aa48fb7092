package gitlab

import (
	"context"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	WebURL       string    `json:"web_url,omitempty"`
	LastSignInAt time.Time `json:"last_sign_in_at"`
}

type EventAuthor struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Event struct {
	ID          int64       `json:"id"`
	ProjectID   int64       `json:"project_id"`
	ActionName  string      `json:"action_name"`
	TargetType  string      `json:"target_type,omitempty"`
	TargetTitle string      `json:"target_title,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Author      EventAuthor `json:"author"`
}

// CurrentUser returns the profile of the token owner.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.FetchJSON(ctx, "/user", accessToken, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

const groupProjectsQuery = `query {
  currentUser {
    groupMemberships(first: 3) {
      nodes {
        group {
          name
          fullPath
          webUrl
          avatarUrl
          projects(first: 5, includeSubgroups: true) {
            count
            nodes {
              name
              fullPath
              webUrl
              avatarUrl
              lastActivityAt
            }
          }
        }
      }
    }
  }
}`

type Project struct {
	Name           string    `json:"name"`
	FullPath       string    `json:"fullPath"`
	WebURL         string    `json:"webUrl"`
	AvatarURL      string    `json:"avatarUrl"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

type Group struct {
	Name      string `json:"name"`
	FullPath  string `json:"fullPath"`
	WebURL    string `json:"webUrl"`
	AvatarURL string `json:"avatarUrl"`
	Projects  struct {
		Count int       `json:"count"`
		Nodes []Project `json:"nodes"`
	} `json:"projects"`
}

type groupProjectsData struct {
	CurrentUser struct {
		GroupMemberships struct {
			Nodes []struct {
				Group Group `json:"group"`
			} `json:"nodes"`
		} `json:"groupMemberships"`
	} `json:"currentUser"`
}

// GroupProjects returns the first groups the user belongs to, each with
// its most recent projects.
func (c *Client) GroupProjects(ctx context.Context, accessToken string) ([]Group, error) {
	var data groupProjectsData
	if err := c.FetchGraphQL(ctx, groupProjectsQuery, accessToken, &data); err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(data.CurrentUser.GroupMemberships.Nodes))
	for _, n := range data.CurrentUser.GroupMemberships.Nodes {
		groups = append(groups, n.Group)
	}
	return groups, nil
}
