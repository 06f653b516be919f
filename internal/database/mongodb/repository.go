package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vadimbarashkov/qr-tracker/internal/database"
	"github.com/vadimbarashkov/qr-tracker/internal/models"
)

// maxStoredScanEvents caps the stored scan history. The history is trimmed
// on write so a hot code cannot grow its document without bound; read paths
// project an even smaller tail.
const maxStoredScanEvents = 1000

type scanEventRecord struct {
	Timestamp time.Time `bson:"timestamp"`
	UserAgent string    `bson:"userAgent"`
	IP        string    `bson:"ip"`
	Country   string    `bson:"country"`
}

type qrCodeRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ShortID     string             `bson:"shortId"`
	OriginalURL string             `bson:"originalUrl"`
	RedirectURL string             `bson:"redirectUrl"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Image       string             `bson:"qrCodeImage"`
	Scans       int64              `bson:"scans"`
	ScanHistory []scanEventRecord  `bson:"scanHistory"`
	LastScanned *time.Time         `bson:"lastScanned,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	IsActive    bool               `bson:"isActive"`
}

func (r *qrCodeRecord) ToQRCode() *models.QRCode {
	qr := &models.QRCode{
		ShortID:     r.ShortID,
		OriginalURL: r.OriginalURL,
		RedirectURL: r.RedirectURL,
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		Scans:       r.Scans,
		LastScanned: r.LastScanned,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		IsActive:    r.IsActive,
	}

	if !r.ID.IsZero() {
		qr.ID = r.ID.Hex()
	}

	for _, e := range r.ScanHistory {
		qr.ScanHistory = append(qr.ScanHistory, models.ScanEvent(e))
	}

	return qr
}

// QRCodeRepository stores QR code records in a MongoDB collection.
// Every operation runs under its own timeout, derived from opTimeout.
type QRCodeRepository struct {
	coll      *mongo.Collection
	opTimeout time.Duration
}

func NewQRCodeRepository(db *mongo.Database, opTimeout time.Duration) *QRCodeRepository {
	return &QRCodeRepository{
		coll:      db.Collection(qrCodesCollection),
		opTimeout: opTimeout,
	}
}

func (r *QRCodeRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// Create inserts a new QR code record. The short ID must be unique;
// a duplicate insert fails with database.ErrShortIDExists.
func (r *QRCodeRepository) Create(ctx context.Context, qr models.QRCode) (*models.QRCode, error) {
	const op = "database.mongodb.QRCodeRepository.Create"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	now := time.Now()
	rec := qrCodeRecord{
		ShortID:     qr.ShortID,
		OriginalURL: qr.OriginalURL,
		RedirectURL: qr.RedirectURL,
		Title:       qr.Title,
		Description: qr.Description,
		Image:       qr.Image,
		Scans:       0,
		ScanHistory: []scanEventRecord{},
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}

	res, err := r.coll.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortIDExists)
		}

		return nil, fmt.Errorf("%s: failed to insert qr code record: %w", op, err)
	}

	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = id
	}

	return rec.ToQRCode(), nil
}

// RegisterScan records one successful resolution of an active short ID.
// The counter increment, lastScanned update and history append are issued
// as a single atomic update, so concurrent scans never lose an increment
// and a crash cannot leave the counter and the log out of step.
func (r *QRCodeRepository) RegisterScan(ctx context.Context, shortID string, event models.ScanEvent) (*models.QRCode, error) {
	const op = "database.mongodb.QRCodeRepository.RegisterScan"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	filter := bson.M{"shortId": shortID, "isActive": true}
	update := bson.M{
		"$inc": bson.M{"scans": 1},
		"$set": bson.M{"lastScanned": event.Timestamp},
		"$push": bson.M{
			"scanHistory": bson.M{
				"$each":  []scanEventRecord{scanEventRecord(event)},
				"$slice": -maxStoredScanEvents,
			},
		},
	}

	rec := new(qrCodeRecord)
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrQRCodeNotFound)
		}

		return nil, fmt.Errorf("%s: failed to register scan: %w", op, err)
	}

	return rec.ToQRCode(), nil
}

// Update changes the destination URL of a QR code. The stored QR image is
// left untouched since it encodes the redirect URL, not the destination.
// Concurrent updates are last-write-wins.
func (r *QRCodeRepository) Update(ctx context.Context, shortID, originalURL string) (*models.QRCode, error) {
	const op = "database.mongodb.QRCodeRepository.Update"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"originalUrl": originalURL,
			"updatedAt":   time.Now(),
		},
	}

	rec := new(qrCodeRecord)
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"shortId": shortID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrQRCodeNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update qr code record: %w", op, err)
	}

	return rec.ToQRCode(), nil
}

// Deactivate flips the kill switch. Subsequent resolutions of the short ID
// behave exactly like resolutions of an unknown ID.
func (r *QRCodeRepository) Deactivate(ctx context.Context, shortID string) error {
	const op = "database.mongodb.QRCodeRepository.Deactivate"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"isActive":  false,
			"updatedAt": time.Now(),
		},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"shortId": shortID}, update)
	if err != nil {
		return fmt.Errorf("%s: failed to deactivate qr code: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrQRCodeNotFound)
	}

	return nil
}

// GetStats reads a QR code with the scan history capped to the most recent
// entries, tail-sliced store-side. It matches inactive records too, so
// dashboards keep working after a code is switched off.
func (r *QRCodeRepository) GetStats(ctx context.Context, shortID string) (*models.QRCode, error) {
	const op = "database.mongodb.QRCodeRepository.GetStats"

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	projection := bson.M{
		"shortId":     1,
		"originalUrl": 1,
		"title":       1,
		"scans":       1,
		"lastScanned": 1,
		"createdAt":   1,
		"isActive":    1,
		"scanHistory": bson.M{"$slice": -models.MaxRecentScans},
	}

	rec := new(qrCodeRecord)
	err := r.coll.FindOne(ctx, bson.M{"shortId": shortID},
		options.FindOne().SetProjection(projection),
	).Decode(rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrQRCodeNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get qr code record: %w", op, err)
	}

	return rec.ToQRCode(), nil
}
