package domain

// RequestDateLayout renders request and handling dates, e.g. "07 - Mar - 2024".
const RequestDateLayout = "02 - Jan - 2006"

func NewMemberView(m Member) MemberView {
	return MemberView{
		ID:          m.ID.String(),
		TableName:   m.ObjectType,
		TableID:     m.UserID.String(),
		GroupID:     m.GroupID.String(),
		Capacity:    m.Capacity,
		State:       string(m.State),
		Locale:      m.Locale(),
		RequestedAt: m.RequestedAt,
		DecidedAt:   m.DecidedAt,
		Revision:    m.Revision,
	}
}

func NewUserView(u User) UserView {
	return UserView{
		ID:        u.ID.String(),
		Name:      u.Name,
		FullName:  u.FullName,
		State:     u.State,
		Sysadmin:  u.Sysadmin,
		CreatedAt: u.CreatedAt,
	}
}

func NewPendingRequestView(m Member, group Group, user User) PendingRequestView {
	return PendingRequestView{
		MemberView: NewMemberView(m),
		GroupName:  group.Name,
		UserName:   user.Name,
	}
}

func NewMyRequestView(m Member, group Group, user User) MyRequestView {
	view := MyRequestView{
		MemberName:       user.Name,
		OrganizationName: group.Name,
		State:            string(m.State),
		Role:             m.Capacity,
		RequestDate:      m.RequestedAt.Format(RequestDateLayout),
	}
	if m.DecidedAt != nil {
		handled := m.DecidedAt.Format(RequestDateLayout)
		view.HandlingDate = &handled
	}
	return view
}
