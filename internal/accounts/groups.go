package accounts

import (
	"context"
	"errors"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
)

// GroupGrant is one row of a group's capability table.
type GroupGrant struct {
	Resource     string   `json:"resource"`
	Capabilities []string `json:"capabilities"`
}

// Group describes a permission group and who is in it.
type Group struct {
	Name    string       `json:"name"`
	Grants  []GroupGrant `json:"grants"`
	Members []string     `json:"members"`
}

// ListGroups returns every group defined by the policy with its members.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	byName := make(map[string]*Group)
	var out []Group
	for _, name := range s.policy.Groups() {
		members, err := s.memberships.MembersOf(ctx, name)
		if err != nil {
			return nil, err
		}
		if members == nil {
			members = []string{}
		}
		out = append(out, Group{Name: name, Grants: []GroupGrant{}, Members: members})
	}
	for i := range out {
		byName[out[i].Name] = &out[i]
	}
	for _, g := range s.policy.Table() {
		caps := make([]string, 0, len(g.Capabilities))
		for _, c := range g.Capabilities {
			caps = append(caps, c.String())
		}
		grp := byName[g.Group]
		grp.Grants = append(grp.Grants, GroupGrant{Resource: string(g.Resource), Capabilities: caps})
	}
	return out, nil
}

func (s *Service) checkMember(ctx context.Context, group, accountID string) error {
	if !s.policy.HasGroup(group) {
		return apperr.NotFound("group %q not found", group)
	}
	ok, err := s.accounts.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("account %s not found", accountID)
	}
	return nil
}

// AddMember puts accountID in group. Adding twice is a no-op.
func (s *Service) AddMember(ctx context.Context, group, accountID string) error {
	if err := s.checkMember(ctx, group, accountID); err != nil {
		return err
	}
	return s.memberships.AddMembership(ctx, accountID, group)
}

func (s *Service) RemoveMember(ctx context.Context, group, accountID string) error {
	if err := s.checkMember(ctx, group, accountID); err != nil {
		return err
	}
	return s.memberships.RemoveMembership(ctx, accountID, group)
}

// SeedResult counts what Seed changed.
type SeedResult struct {
	Created     int
	Memberships int
}

// Seed creates the accounts listed in f that do not exist yet and adds every
// listed membership. Existing passwords are left alone.
func (s *Service) Seed(ctx context.Context, f *access.File) (SeedResult, error) {
	var res SeedResult
	for _, sa := range f.Accounts {
		if sa.Username == "" {
			continue
		}

		a, err := s.accounts.GetAccountByUsername(ctx, sa.Username)
		var nf *apperr.NotFoundError
		switch {
		case errors.As(err, &nf):
			if sa.Password == "" {
				logg.Warn("accounts/seed", "Skipping seed account without password: "+sa.Username)
				continue
			}
			sess, err := s.Register(ctx, RegisterInput{Username: sa.Username, Password: sa.Password})
			if err != nil {
				return res, err
			}
			a = sess.Account
			res.Created++
		case err != nil:
			return res, err
		}

		for _, g := range sa.Groups {
			if err := s.AddMember(ctx, g, a.ID); err != nil {
				return res, err
			}
			res.Memberships++
		}
	}
	return res, nil
}

// Notifications lists the newest notifications of accountID.
func (s *Service) Notifications(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	list, err := s.notifications.ListNotifications(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

func (s *Service) MarkNotificationsRead(ctx context.Context, accountID string) error {
	return s.notifications.MarkNotificationsRead(ctx, accountID)
}
