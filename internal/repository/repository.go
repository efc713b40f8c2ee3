package repository

import (
	"festival/internal/database"
)

type Repositories struct {
	Store         *PostgresStore
	Users         *UserRepository
	Auctions      *AuctionRepository
	TicketTypes   *TicketTypeRepository
	Tickets       *TicketRepository
	Projects      *ProjectRepository
	Artists       *ArtistRepository
	Issues        *IssueRepository
	Notifications *NotificationRepository
	Scheduled     *ScheduledNotificationRepository
	Donations     *DonationRepository
	Dashboard     *DashboardRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Store:         NewPostgresStore(db),
		Users:         NewUserRepository(db),
		Auctions:      NewAuctionRepository(db),
		TicketTypes:   NewTicketTypeRepository(db),
		Tickets:       NewTicketRepository(db),
		Projects:      NewProjectRepository(db),
		Artists:       NewArtistRepository(db),
		Issues:        NewIssueRepository(db),
		Notifications: NewNotificationRepository(db),
		Scheduled:     NewScheduledNotificationRepository(db),
		Donations:     NewDonationRepository(db),
		Dashboard:     NewDashboardRepository(db),
	}
}
