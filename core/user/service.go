package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrResetLinkInvalid   = errors.New("the reset link is invalid or has expired")
)

type (
	// Repository is the users storage. An optional executor lets a method take part in a transaction.
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another user than excludedIDs owns email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		QueryUsersByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		// QueryByIDs batch loads users for joins. Unknown ids are absent from the map.
		QueryByIDs(ctx context.Context, ids ...string) (map[string]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		Update(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetPassword(ctx context.Context, id, pwd string) (User, error)
		SetAdmin(ctx context.Context, id string, admin bool) (User, error)
		Verify(ctx context.Context, id string) (User, error)
		SetBlocked(ctx context.Context, id string, blocked bool) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo      Repository
		conf      *core.Config
		mailSvc   core.EmailService
		publisher core.Publisher
		tokenGen  tokenGenerator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	conf *core.Config,
	mailSvc core.EmailService,
	publisher core.Publisher,
) Service {
	if publisher == nil {
		publisher = core.NopPublisher
	}
	return &service{
		repo:      repo,
		conf:      conf,
		mailSvc:   mailSvc,
		publisher: publisher,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *service) checkUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register creates an unverified member account. nu must have been validated.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		ID:         uuid.NewString(),
		Name:       nu.Name,
		Email:      nu.Email,
		EmployeeID: nu.EmployeeID,
		Skills:     []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.publisher.Publish(core.NewChange(core.CollectionUsers, core.OpCreate, usr.ID))
	return usr, nil
}

// Authenticate checks the credentials and stamps the last login.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if usr.IsBlocked {
		return User{}, ErrAccountBlocked
	}

	usr.LastLogin = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) QueryByIDs(ctx context.Context, ids ...string) (map[string]User, error) {
	ids = core.UniqueStrings(core.CleanStrings(ids))
	users := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	result, err := svc.repo.QueryUsersByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by IDs")
	}
	for _, usr := range result {
		users[usr.ID] = usr
	}
	return users, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.FilterUsers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.CountUsers(ctx, filter)
}

// Update saves every profile field of usr. The email must stay unique.
func (svc *service) Update(ctx context.Context, usr User) (User, error) {
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	if err := svc.checkUniqueness(ctx, usr.Email, usr.ID); err != nil {
		return User{}, err
	}
	if usr.Skills == nil {
		usr.Skills = []string{}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	svc.publisher.Publish(core.NewChange(core.CollectionUsers, core.OpUpdate, usr.ID))
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := svc.repo.DeleteUsersByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	for _, id := range ids {
		svc.publisher.Publish(core.NewChange(core.CollectionUsers, core.OpDelete, id))
	}
	return nil
}

func (svc *service) modify(ctx context.Context, id string, fn func(usr *User) error) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = fn(&usr); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	svc.publisher.Publish(core.NewChange(core.CollectionUsers, core.OpUpdate, usr.ID))
	return usr, nil
}

// SetPassword replaces the password without applying the policy. Used by the admin CLI.
func (svc *service) SetPassword(ctx context.Context, id, pwd string) (User, error) {
	return svc.modify(ctx, id, func(usr *User) error {
		return errors.Wrap(usr.SetPassword(pwd), "hashing password")
	})
}

func (svc *service) SetAdmin(ctx context.Context, id string, admin bool) (User, error) {
	return svc.modify(ctx, id, func(usr *User) error {
		usr.IsAdmin = admin
		return nil
	})
}

// Verify grants directory membership and notifies the user by mail.
func (svc *service) Verify(ctx context.Context, id string) (User, error) {
	usr, err := svc.modify(ctx, id, func(usr *User) error {
		usr.IsVerified = true
		return nil
	})
	if err != nil {
		return User{}, err
	}
	svc.sendAccountVerifiedMail(usr)
	return usr, nil
}

func (svc *service) SetBlocked(ctx context.Context, id string, blocked bool) (User, error) {
	return svc.modify(ctx, id, func(usr *User) error {
		usr.IsBlocked = blocked
		return nil
	})
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsBlocked {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrResetLinkInvalid)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrResetLinkInvalid)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrResetLinkInvalid)
	}
	if tooSimilar(data.Password, usr.Name, usr.Email) {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdAttrSimText})
	}

	_, err = svc.SetPassword(ctx, usr.ID, data.Password)
	return err
}

func (svc *service) recipient(usr User) []mail.Address {
	return []mail.Address{{Name: usr.Name, Address: usr.Email}}
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           svc.recipient(usr),
		Subject:      fmt.Sprintf("Password reset on %s", svc.conf.AppName),
		TemplateName: core.TmplPasswordReset,
		TemplateData: map[string]string{
			"Name": usr.Name,
			"URL": fmt.Sprintf(
				"%s/password-reset/%s/%s", svc.conf.FrontendBaseURL, EncodeUID(usr), svc.tokenGen.makeToken(usr),
			),
		},
	})
}

func (svc *service) sendAccountVerifiedMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           svc.recipient(usr),
		Subject:      fmt.Sprintf("Your %s account is verified", svc.conf.AppName),
		TemplateName: core.TmplAccountVerified,
		TemplateData: map[string]string{
			"Name": usr.Name,
			"URL":  svc.conf.FrontendBaseURL,
		},
	})
}

// ValidateAndRegister is a convenience for callers that did not validate nu yet.
func ValidateAndRegister(ctx context.Context, svc Service, validate *validator.Validate, nu NewUser) (User, error) {
	if err := nu.Validate(validate); err != nil {
		return User{}, err
	}
	return svc.Register(ctx, nu)
}
