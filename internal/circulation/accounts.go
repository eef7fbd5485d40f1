package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aoideee/libmgs/internal/data"
	"github.com/aoideee/libmgs/internal/validator"
)

// SignupRequest is the member registration form.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	PhoneNumber     string `json:"phone_number"`
	Address         string `json:"address"`
}

// Session is an authenticated account together with its token. Member is
// nil for staff accounts.
type Session struct {
	User   *data.User   `json:"user"`
	Member *data.Member `json:"member,omitempty"`
	Token  *data.Token  `json:"authentication_token"`
}

func validateSignup(v *validator.Validator, req SignupRequest, user *data.User) {
	data.ValidateUser(v, user)
	data.ValidatePasswordPlaintext(v, req.Password)
	v.Check(req.Password == req.PasswordConfirm, "password_confirm", "passwords do not match")
	v.Check(validator.NotBlank(req.PhoneNumber), "phone_number", "must be provided")
	v.Check(validator.MaxChars(req.PhoneNumber, 15), "phone_number", "must not be more than 15 characters long")
	v.Check(validator.NotBlank(req.Address), "address", "must be provided")
}

// SignUp registers a member and starts a session for them. The account and
// member profile are stored together; a membership ID collision retries the
// whole insert with a fresh ID.
func (s *Service) SignUp(ctx context.Context, req SignupRequest) (*Session, error) {
	user := &data.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Address = strings.TrimSpace(req.Address)

	v := validator.New()
	if validateSignup(v, req, user); !v.Valid() {
		return nil, failed(v.Errors)
	}

	if err := user.Password.Set(req.Password); err != nil {
		return nil, err
	}

	member := &data.Member{PhoneNumber: req.PhoneNumber, Address: req.Address}
	if err := s.insertMember(ctx, user, member); err != nil {
		return nil, err
	}

	token, err := s.models.Tokens.New(ctx, user.ID, s.config.SessionTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member signed up", "username", user.Username, "membership_id", member.MembershipID)
	return &Session{User: user, Member: member, Token: token}, nil
}

func (s *Service) insertMember(ctx context.Context, user *data.User, member *data.Member) error {
	for attempt := 1; attempt <= maxMembershipAttempts; attempt++ {
		member.MembershipID = s.newMembershipID()

		err := s.models.Members.InsertWithUser(ctx, user, member)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, data.ErrDuplicateMembershipID):
			s.logger.Warn("membership id collision", "membership_id", member.MembershipID, "attempt", attempt)
			continue
		default:
			return accountError(err)
		}
	}
	return fmt.Errorf("%w: no unique membership id after %d attempts", ErrIntegrity, maxMembershipAttempts)
}

// CreateStaff adds a staff account with no member profile.
func (s *Service) CreateStaff(ctx context.Context, username, email, password string) (*data.User, error) {
	user := &data.User{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		IsStaff:  true,
	}

	v := validator.New()
	data.ValidateUser(v, user)
	data.ValidatePasswordPlaintext(v, password)
	if !v.Valid() {
		return nil, failed(v.Errors)
	}

	if err := user.Password.Set(password); err != nil {
		return nil, err
	}
	if err := s.models.Users.Insert(ctx, user); err != nil {
		return nil, accountError(err)
	}

	s.logger.Info("staff account created", "username", user.Username)
	return user, nil
}

// DeleteAccount removes an account by username. Its member profile, loans
// and sessions are deleted with it.
func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	user, err := s.models.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("account %q: %w", username, ErrNotFound)
		}
		return err
	}

	if err := s.models.Users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, data.ErrRestricted) {
			return fmt.Errorf("%w: account %q is still referenced", ErrIntegrity, username)
		}
		return err
	}

	s.logger.Info("account deleted", "username", username)
	return nil
}

// Login checks the credentials and starts a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.models.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := user.Password.Matches(password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	token, err := s.models.Tokens.New(ctx, user.ID, s.config.SessionTTL)
	if err != nil {
		return nil, err
	}

	session := &Session{User: user, Token: token}
	if !user.IsStaff {
		member, err := s.models.Members.GetForUser(ctx, user.ID)
		switch {
		case err == nil:
			session.Member = member
		case !errors.Is(err, data.ErrRecordNotFound):
			return nil, err
		}
	}
	return session, nil
}

// Logout ends every session of user.
func (s *Service) Logout(ctx context.Context, user *data.User) error {
	return s.models.Tokens.DeleteAllForUser(ctx, user.ID)
}

// Authenticate resolves a session token to its account.
func (s *Service) Authenticate(ctx context.Context, token string) (*data.User, error) {
	user, err := s.models.Users.GetForToken(ctx, token)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

func accountError(err error) error {
	switch {
	case errors.Is(err, data.ErrDuplicateUsername):
		return fieldError("username", "a user with that username already exists")
	case errors.Is(err, data.ErrDuplicateEmail):
		return fieldError("email", "a user with this email address already exists")
	case errors.Is(err, data.ErrDuplicateMember):
		return fmt.Errorf("%w: account already has a member profile", ErrIntegrity)
	default:
		return err
	}
}
