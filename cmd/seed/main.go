package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"festival/internal/auth"
	"festival/internal/config"
	"festival/internal/database"
	"festival/internal/logger"
	"festival/internal/models"
	"festival/internal/repository"
	"festival/internal/service"
)

var (
	clearExisting = flag.Bool("clear", false, "Clear existing catalog before seeding")
	dryRun        = flag.Bool("dry-run", false, "Show what would be seeded without making changes")
	adminEmail    = flag.String("admin-email", "", "Create an admin user with this email (password from SEED_ADMIN_PASSWORD)")
)

type ticketTypeSeed struct {
	Name        string
	Description string
	Price       int64
	Quantity    int
}

type projectSeed struct {
	Name        string
	Description string
	Goal        int64
}

type auctionSeed struct {
	Title       string
	Description string
	StartingBid int64
	Status      string
	StartsIn    time.Duration
	Duration    time.Duration
}

type performanceSeed struct {
	Stage    string
	Day      int
	Hour     int
	Duration time.Duration
}

type artistSeed struct {
	Name         string
	Genre        string
	Description  string
	Performances []performanceSeed
}

var ticketTypes = []ticketTypeSeed{
	{"1-Tages-Ticket", "Eintritt für einen Festivaltag", 4900, 2000},
	{"3-Tages-Ticket", "Eintritt für alle drei Festivaltage", 9900, 1500},
	{"VIP-Ticket", "Alle Tage, VIP-Bereich und Backstage-Führung", 19900, 100},
}

var projects = []projectSeed{
	{"Trinkwasser für Schulen", "Brunnen und Wasserfilter für Partnerschulen", 5000000},
	{"Musikunterricht für Kinder", "Instrumente und Lehrkräfte für Jugendzentren", 2500000},
	{"Bäume für das Festivalgelände", "Aufforstung rund um das Gelände", 1000000},
}

var auctions = []auctionSeed{
	{"Signierte Gitarre", "Von allen Headlinern signiert", 10000, models.AuctionActive, -time.Hour, 72 * time.Hour},
	{"Backstage-Treffen", "Meet & Greet mit einem Act deiner Wahl", 25000, models.AuctionActive, -time.Hour, 48 * time.Hour},
	{"Festivalplakat 1/1", "Einzelstück aus dem Siebdruck-Workshop", 5000, models.AuctionUpcoming, 24 * time.Hour, 48 * time.Hour},
}

var artists = []artistSeed{
	{"Die Wanderdünen", "Indie", "Gitarrenpop von der Küste", []performanceSeed{{"Hauptbühne", 0, 20, 90 * time.Minute}}},
	{"Nachtfalter Kollektiv", "Electronic", "Live-Elektronik bis zum Morgengrauen", []performanceSeed{
		{"Zeltbühne", 0, 23, 2 * time.Hour},
		{"Zeltbühne", 1, 23, 2 * time.Hour},
	}},
	{"Marta & die Zugvögel", "Folk", "Akustik und mehrstimmiger Gesang", []performanceSeed{{"Waldbühne", 1, 16, time.Hour}}},
	{"Kupferblech", "Brass", "Blasmusik trifft Hip-Hop", []performanceSeed{{"Hauptbühne", 2, 18, 75 * time.Minute}}},
}

type Seeder struct {
	db  *database.DB
	now time.Time
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting festival seeder...")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	seeder := &Seeder{db: db, now: time.Now()}

	if err := seeder.Seed(); err != nil {
		logger.Fatal("Failed to seed catalog", "error", err)
	}

	if *adminEmail != "" {
		if err := seeder.SeedAdmin(*adminEmail, os.Getenv("SEED_ADMIN_PASSWORD"), cfg.Auth.BcryptCost); err != nil {
			logger.Fatal("Failed to seed admin", "error", err)
		}
	}

	log.Info("Seeding completed successfully!")
}

func (s *Seeder) Seed() error {
	if !*clearExisting {
		count, err := s.existingCount()
		if err != nil {
			return fmt.Errorf("failed to check existing catalog: %w", err)
		}
		if count > 0 {
			logger.Get().Info("Catalog already seeded, skipping (use -clear to override)", "ticket_types", count)
			return nil
		}
	}

	if *dryRun {
		logger.Get().Info("[DRY RUN] Would seed catalog",
			"ticket_types", len(ticketTypes),
			"projects", len(projects),
			"auctions", len(auctions),
			"artists", len(artists))
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if *clearExisting {
		if err := s.clear(tx); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}
	}

	steps := []struct {
		name string
		fn   func(*sql.Tx) error
	}{
		{"ticket types", s.insertTicketTypes},
		{"projects", s.insertProjects},
		{"auctions", s.insertAuctions},
		{"artists", s.insertArtists},
	}
	for _, step := range steps {
		if err := step.fn(tx); err != nil {
			return fmt.Errorf("failed to insert %s: %w", step.name, err)
		}
		logger.Get().Info("Seeded", "what", step.name)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Seeder) existingCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM ticket_types").Scan(&count)
	return count, err
}

// clear удаляет только каталог; билеты, пожертвования и ставки ссылаются на него и должны быть пусты
func (s *Seeder) clear(tx *sql.Tx) error {
	for _, table := range []string{"performances", "artists", "auctions", "charity_projects", "ticket_types"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("%s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) insertTicketTypes(tx *sql.Tx) error {
	for _, t := range ticketTypes {
		if _, err := tx.Exec(
			`INSERT INTO ticket_types (name, description, price, available_quantity) VALUES ($1, $2, $3, $4)`,
			t.Name, t.Description, t.Price, t.Quantity,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) insertProjects(tx *sql.Tx) error {
	for _, p := range projects {
		if _, err := tx.Exec(
			`INSERT INTO charity_projects (name, description, goal) VALUES ($1, $2, $3)`,
			p.Name, p.Description, p.Goal,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) insertAuctions(tx *sql.Tx) error {
	for _, a := range auctions {
		startsAt := s.now.Add(a.StartsIn)
		if _, err := tx.Exec(
			`INSERT INTO auctions (title, description, starting_bid, status, starts_at, ends_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.Title, a.Description, a.StartingBid, a.Status, startsAt, startsAt.Add(a.Duration),
		); err != nil {
			return err
		}
	}
	return nil
}

// insertArtists раскладывает выступления по дням начиная с завтрашнего
func (s *Seeder) insertArtists(tx *sql.Tx) error {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	firstDay := time.Date(s.now.Year(), s.now.Month(), s.now.Day()+1, 0, 0, 0, 0, loc)

	for _, a := range artists {
		var artistID int64
		if err := tx.QueryRow(
			`INSERT INTO artists (name, slug, description, genre) VALUES ($1, $2, $3, $4) RETURNING id`,
			a.Name, service.Slugify(a.Name), a.Description, a.Genre,
		).Scan(&artistID); err != nil {
			return err
		}

		for _, p := range a.Performances {
			startsAt := firstDay.AddDate(0, 0, p.Day).Add(time.Duration(p.Hour) * time.Hour)
			if _, err := tx.Exec(
				`INSERT INTO performances (artist_id, stage, starts_at, ends_at) VALUES ($1, $2, $3, $4)`,
				artistID, p.Stage, startsAt, startsAt.Add(p.Duration),
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// SeedAdmin создает пользователя и выдает роль admin; существующему пользователю только роль
func (s *Seeder) SeedAdmin(email, password string, bcryptCost int) error {
	if password == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD is required with -admin-email")
	}
	if *dryRun {
		logger.Get().Info("[DRY RUN] Would create admin", "email", email)
		return nil
	}

	ctx := context.Background()
	users := repository.NewUserRepository(s.db)

	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}
	if user == nil {
		hash, err := auth.HashPassword(password, bcryptCost)
		if err != nil {
			return err
		}
		user = &models.User{
			Email:        email,
			PasswordHash: hash,
			FirstName:    "Festival",
			LastName:     "Admin",
		}
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
	}

	if err := users.GrantRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}

	logger.Get().Info("Admin ready", "email", email, "user_id", user.ID)
	return nil
}
