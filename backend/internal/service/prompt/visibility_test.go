package prompt

import (
	"testing"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	userdomain "promptlib-go-app/backend/internal/domain/user"
)

func TestCanView(t *testing.T) {
	approved := &promptdomain.Prompt{ID: "p1", Status: promptdomain.PromptStatusApproved, CreatedBy: "alice"}
	pending := &promptdomain.Prompt{ID: "p2", Status: promptdomain.PromptStatusPending, CreatedBy: "alice"}
	rejected := &promptdomain.Prompt{ID: "p3", Status: promptdomain.PromptStatusRejected, CreatedBy: "alice"}

	cases := []struct {
		name   string
		entity *promptdomain.Prompt
		viewer Viewer
		want   bool
	}{
		{"匿名可见已通过", approved, Viewer{}, true},
		{"匿名不可见待审", pending, Viewer{}, false},
		{"匿名不可见已驳回", rejected, Viewer{}, false},
		{"路人不可见待审", pending, Viewer{ID: "bob", Role: userdomain.RoleUser}, false},
		{"作者可见待审", pending, Viewer{ID: "alice", Role: userdomain.RoleUser}, true},
		{"作者可见已驳回", rejected, Viewer{ID: "alice", Role: userdomain.RoleUser}, true},
		{"管理员可见待审", pending, Viewer{ID: "root", Role: userdomain.RoleAdmin}, true},
		{"空记录不可见", nil, Viewer{ID: "root", Role: userdomain.RoleAdmin}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.entity, tc.viewer); got != tc.want {
				t.Fatalf("CanView = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanModify(t *testing.T) {
	entity := &promptdomain.Prompt{ID: "p1", Status: promptdomain.PromptStatusApproved, CreatedBy: "alice"}

	cases := []struct {
		name  string
		actor Viewer
		want  bool
	}{
		{"作者可改", Viewer{ID: "alice", Role: userdomain.RoleUser}, true},
		{"管理员可改", Viewer{ID: "root", Role: userdomain.RoleAdmin}, true},
		{"路人不可改", Viewer{ID: "bob", Role: userdomain.RoleUser}, false},
		{"匿名不可改", Viewer{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanModify(entity, tc.actor); got != tc.want {
				t.Fatalf("CanModify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestViewerMetricsLabel(t *testing.T) {
	if got := (Viewer{}).MetricsLabel(); got != "anonymous" {
		t.Fatalf("anonymous label = %s", got)
	}
	if got := (Viewer{ID: "u", Role: userdomain.RoleUser}).MetricsLabel(); got != "user" {
		t.Fatalf("user label = %s", got)
	}
	if got := (Viewer{ID: "a", Role: userdomain.RoleAdmin}).MetricsLabel(); got != "admin" {
		t.Fatalf("admin label = %s", got)
	}
}
