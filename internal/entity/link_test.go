package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newLink(expiry time.Duration) *Link {
	return &Link{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		RedirectTo: "/",
		CreatedAt:  epoch,
		ExpiresAt:  epoch.Add(expiry),
		IsActive:   true,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestLinkIsValidMatchesDefinition(t *testing.T) {
	cases := []struct {
		name     string
		active   bool
		loggedIn *time.Time
		offset   time.Duration
	}{
		{"fresh", true, nil, 0},
		{"inactive", false, nil, 0},
		{"at expiry", true, nil, time.Minute},
		{"past expiry", true, nil, 2 * time.Minute},
		{"used", false, timePtr(epoch), 0},
		{"used but still flagged active", true, timePtr(epoch), 0},
		{"inactive and expired", false, nil, time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			link := newLink(time.Minute)
			link.IsActive = tc.active
			link.LoggedInAt = tc.loggedIn
			now := epoch.Add(tc.offset)

			want := tc.active && now.Before(link.ExpiresAt) && tc.loggedIn == nil
			if got := link.IsValid(now); got != want {
				t.Fatalf("IsValid() = %v, want %v", got, want)
			}
			if (link.Validate(now) == nil) != want {
				t.Fatalf("Validate() = %v, disagrees with IsValid() = %v", link.Validate(now), want)
			}
		})
	}
}

func TestLinkValidateReasons(t *testing.T) {
	t.Run("inactive reported before expired", func(t *testing.T) {
		link := newLink(time.Minute)
		link.IsActive = false
		err := link.Validate(epoch.Add(time.Hour))
		if !errors.Is(err, ErrLinkInactive) {
			t.Fatalf("expected inactive, got %v", err)
		}
	})

	t.Run("expired after sixty one seconds", func(t *testing.T) {
		link := newLink(60 * time.Second)
		err := link.Validate(epoch.Add(61 * time.Second))
		if !errors.Is(err, ErrLinkExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Reason != ReasonExpired {
			t.Fatalf("expected ValidationError with expired reason, got %#v", err)
		}
	})

	t.Run("consumed link reports already used", func(t *testing.T) {
		link := newLink(time.Minute)
		if err := link.Transition(EventConsume, epoch); err != nil {
			t.Fatalf("consume: %v", err)
		}
		if err := link.Validate(epoch.Add(time.Second)); !errors.Is(err, ErrLinkUsed) {
			t.Fatalf("expected already used, got %v", err)
		}
	})

	t.Run("validate does not touch timestamps", func(t *testing.T) {
		link := newLink(time.Minute)
		expires := link.ExpiresAt
		for i := 0; i < 3; i++ {
			_ = link.Validate(epoch.Add(time.Duration(i) * time.Hour))
		}
		if !link.ExpiresAt.Equal(expires) || link.AccessedAt != nil || link.LoggedInAt != nil {
			t.Fatalf("validate mutated the link: %+v", link)
		}
	})
}

func TestLinkAuthorize(t *testing.T) {
	link := newLink(time.Minute)

	other := Caller{UserID: uuid.New()}
	if err := link.Authorize(other); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied for other user, got %v", err)
	}
	if err := link.Authorize(Anonymous()); err != nil {
		t.Fatalf("anonymous caller should pass, got %v", err)
	}
	if err := link.Authorize(Caller{UserID: link.UserID}); err != nil {
		t.Fatalf("owner should pass, got %v", err)
	}
}

func TestLinkState(t *testing.T) {
	link := newLink(time.Minute)
	if s := link.State(epoch); s != StateFresh {
		t.Fatalf("state = %s, want fresh", s)
	}
	if s := link.State(epoch.Add(time.Minute)); s != StateExpired {
		t.Fatalf("state = %s, want expired", s)
	}

	_ = link.Transition(EventAccess, epoch.Add(time.Second))
	if s := link.State(epoch.Add(2 * time.Second)); s != StateAccessed {
		t.Fatalf("state = %s, want accessed", s)
	}

	_ = link.Transition(EventDeactivate, epoch.Add(3*time.Second))
	if s := link.State(epoch.Add(4 * time.Second)); s != StateDeactivated {
		t.Fatalf("state = %s, want deactivated", s)
	}
}

func TestLinkTransitions(t *testing.T) {
	t.Run("access stamps only once", func(t *testing.T) {
		link := newLink(time.Minute)
		first := epoch.Add(time.Second)
		_ = link.Transition(EventAccess, first)
		_ = link.Transition(EventAccess, first.Add(time.Second))
		if link.AccessedAt == nil || !link.AccessedAt.Equal(first) {
			t.Fatalf("accessed_at = %v, want %v", link.AccessedAt, first)
		}
	})

	t.Run("access allowed on expired link", func(t *testing.T) {
		link := newLink(time.Minute)
		if err := link.Transition(EventAccess, epoch.Add(time.Hour)); err != nil {
			t.Fatalf("access on expired link: %v", err)
		}
		if link.AccessedAt == nil {
			t.Fatal("expected accessed_at to be set")
		}
	})

	t.Run("consume sets logged in and clears active", func(t *testing.T) {
		link := newLink(time.Minute)
		at := epoch.Add(10 * time.Second)
		if err := link.Transition(EventConsume, at); err != nil {
			t.Fatalf("consume: %v", err)
		}
		if link.LoggedInAt == nil || !link.LoggedInAt.Equal(at) || link.IsActive {
			t.Fatalf("unexpected link after consume: %+v", link)
		}
	})

	t.Run("consume rejected twice", func(t *testing.T) {
		link := newLink(time.Minute)
		_ = link.Transition(EventConsume, epoch)
		first := *link.LoggedInAt
		err := link.Transition(EventConsume, epoch.Add(time.Second))
		if !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, ErrLinkUsed) {
			t.Fatalf("expected invalid transition wrapping already used, got %v", err)
		}
		if !link.LoggedInAt.Equal(first) {
			t.Fatal("logged_in_at changed on rejected transition")
		}
	})

	t.Run("consume rejected when expired", func(t *testing.T) {
		link := newLink(time.Minute)
		err := link.Transition(EventConsume, epoch.Add(time.Minute))
		if !errors.Is(err, ErrLinkExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		if link.LoggedInAt != nil || !link.IsActive {
			t.Fatal("rejected consume must not mutate the link")
		}
	})

	t.Run("deactivate is idempotent", func(t *testing.T) {
		link := newLink(time.Minute)
		for i := 0; i < 2; i++ {
			if err := link.Transition(EventDeactivate, epoch); err != nil {
				t.Fatalf("deactivate: %v", err)
			}
		}
		if link.IsActive {
			t.Fatal("expected inactive link")
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		link := newLink(time.Minute)
		if err := link.Transition(LinkEvent("renew"), epoch); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})
}

func TestUseString(t *testing.T) {
	use := Use{LinkID: uuid.New(), Timestamp: epoch}
	if !use.Succeeded() {
		t.Fatal("use without error should succeed")
	}
	use.Error = "link has expired"
	if use.Succeeded() {
		t.Fatal("use with error should not succeed")
	}
	if got := use.String(); got == "" {
		t.Fatal("expected summary")
	}
}
