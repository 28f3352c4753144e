package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
)

type (
	// fixture is the YAML document loaded by the seed command. Authors are referenced by email.
	fixture struct {
		Users  []userFixture  `yaml:"users"`
		Posts  []postFixture  `yaml:"posts"`
		Events []eventFixture `yaml:"events"`
		Jobs   []jobFixture   `yaml:"jobs"`
	}

	userFixture struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Admin    bool   `yaml:"admin"`
		Verified bool   `yaml:"verified"`
	}

	postFixture struct {
		Author  string `yaml:"author"`
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
	}

	eventFixture struct {
		Creator     string    `yaml:"creator"`
		Title       string    `yaml:"title"`
		Description string    `yaml:"description"`
		Location    string    `yaml:"location"`
		StartDate   time.Time `yaml:"start_date"`
		EndDate     time.Time `yaml:"end_date"`
	}

	jobFixture struct {
		Poster         string   `yaml:"poster"`
		Title          string   `yaml:"title"`
		Company        string   `yaml:"company"`
		Location       string   `yaml:"location"`
		Description    string   `yaml:"description"`
		Requirements   []string `yaml:"requirements"`
		Salary         string   `yaml:"salary"`
		ApplicationURL string   `yaml:"application_url"`
		ContactEmail   string   `yaml:"contact_email"`
	}
)

func loadFixture(path string) (fixture, error) {
	var fx fixture
	f, err := os.Open(path)
	if err != nil {
		return fx, errors.Wrap(err, "opening fixture")
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&fx); err != nil {
		return fx, errors.Wrap(err, "decoding fixture")
	}
	return fx, nil
}

// seed loads a fixture through the services, so that every record is validated.
// Users already registered are left untouched.
func (cli *commandLine) seed(path string) error {
	fx, err := loadFixture(path)
	if err != nil {
		return err
	}
	ctx := context.Background()

	var created int
	for _, uf := range fx.Users {
		ok, err := cli.seedUser(ctx, uf)
		if err != nil {
			return errors.Wrapf(err, "seeding user %s", uf.Email)
		}
		if ok {
			created++
		}
	}
	_, _ = fmt.Fprintf(cli.out, "users: %d created\n", created)

	author := func(email string) (user.User, error) {
		usr, err := cli.usrSvc.GetByEmail(ctx, email)
		return usr, errors.Wrapf(err, "finding %s", email)
	}

	for _, pf := range fx.Posts {
		usr, err := author(pf.Author)
		if err != nil {
			return err
		}
		if _, err = cli.postSvc.Create(ctx, usr, post.NewPost{Title: pf.Title, Content: pf.Content}); err != nil {
			return errors.Wrapf(err, "seeding post %q", pf.Title)
		}
	}
	_, _ = fmt.Fprintf(cli.out, "posts: %d created\n", len(fx.Posts))

	for _, ef := range fx.Events {
		usr, err := author(ef.Creator)
		if err != nil {
			return err
		}
		_, err = cli.eventSvc.Create(ctx, usr, event.NewEvent{
			Title:       ef.Title,
			Description: ef.Description,
			Location:    ef.Location,
			StartDate:   ef.StartDate,
			EndDate:     ef.EndDate,
		})
		if err != nil {
			return errors.Wrapf(err, "seeding event %q", ef.Title)
		}
	}
	_, _ = fmt.Fprintf(cli.out, "events: %d created\n", len(fx.Events))

	for _, jf := range fx.Jobs {
		usr, err := author(jf.Poster)
		if err != nil {
			return err
		}
		_, err = cli.jobSvc.Create(ctx, usr, job.NewJob{
			Title:          jf.Title,
			Company:        jf.Company,
			Location:       jf.Location,
			Description:    jf.Description,
			Requirements:   jf.Requirements,
			Salary:         jf.Salary,
			ApplicationURL: jf.ApplicationURL,
			ContactEmail:   jf.ContactEmail,
		})
		if err != nil {
			return errors.Wrapf(err, "seeding job %q", jf.Title)
		}
	}
	_, _ = fmt.Fprintf(cli.out, "jobs: %d created\n", len(fx.Jobs))
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, uf userFixture) (bool, error) {
	if _, err := cli.usrSvc.GetByEmail(ctx, uf.Email); err == nil {
		return false, nil
	} else if !core.IsNotFound(err) {
		return false, err
	}

	nu := user.NewUser{Name: uf.Name, Email: uf.Email, Password: uf.Password, PasswordConfirm: uf.Password}
	usr, err := user.ValidateAndRegister(ctx, cli.usrSvc, cli.validate, nu)
	if err != nil {
		return false, err
	}
	if uf.Admin {
		if usr, err = cli.usrSvc.SetAdmin(ctx, usr.ID, true); err != nil {
			return false, err
		}
	}
	if uf.Verified {
		if _, err = cli.usrSvc.Verify(ctx, usr.ID); err != nil {
			return false, err
		}
	}
	return true, nil
}
