package db

import (
	"paddock-auction-engine/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetBidRepository returns the bid repository
func (f *RepositoryFactory) GetBidRepository() outbound.BidRepository {
	return NewBidRepository(f.conn)
}

// GetDepositRepository returns the deposit repository
func (f *RepositoryFactory) GetDepositRepository() outbound.DepositRepository {
	return NewDepositRepository(f.conn)
}

// GetPaymentRepository returns the payment repository
func (f *RepositoryFactory) GetPaymentRepository() outbound.PaymentRepository {
	return NewPaymentRepository(f.conn)
}

// GetAlertRepository returns the fraud alert repository
func (f *RepositoryFactory) GetAlertRepository() outbound.FraudAlertRepository {
	return NewAlertRepository(f.conn)
}

// GetAuditRepository returns the audit repository
func (f *RepositoryFactory) GetAuditRepository() outbound.AuditRepository {
	return NewAuditRepository(f.conn)
}
