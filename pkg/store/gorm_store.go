package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"wisechat/pkg/domain"
)

const migrateLockID int64 = 51732117

const (
	defaultPageSize = 100
	sqlitePrefix    = "sqlite://"
)

// GormStore implements Store using GORM over Postgres (or SQLite for local runs).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. DSNs prefixed with
// "sqlite://" open a SQLite file; anything else is handed to the Postgres driver.
func NewGormStore(dsn string) (*GormStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return NewGormStoreWithDialector(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)))
	}
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens the DB with an explicit dialector.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ChatModel{}, &MessageModel{}, &FileModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts an account and returns it with the assigned id.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	model := userToModel(u)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.User{}, translate(err)
	}
	return userFromModel(model), nil
}

// GetUserByUsername looks up an account by exact username.
func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns an account by id.
func (s *GormStore) GetUserByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetSuperuser returns the oldest superuser account.
func (s *GormStore) GetSuperuser(ctx context.Context) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).
		Where("role = ?", string(domain.RoleSuperuser)).
		Order("id ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns a page of accounts in id order.
func (s *GormStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	var models []UserModel
	if err := paginate(s.db.WithContext(ctx), limit, offset).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// EnsureGuestChat returns the guest's chat, creating {guest, superuser} when absent.
// A concurrent creator losing the unique guest_id race re-reads the winner's chat.
func (s *GormStore) EnsureGuestChat(ctx context.Context, guestID int64) (domain.Chat, error) {
	var chatID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guest UserModel
		if err := tx.First(&guest, "id = ?", guestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if role, ok := domain.ParseUserRole(guest.Role); !ok || role != domain.RoleGuest {
			return ErrNotGuest
		}
		var existing []ChatModel
		if err := tx.Where("guest_id = ?", guestID).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			chatID = existing[0].ID
			return nil
		}
		var supers []UserModel
		if err := tx.Where("role = ?", string(domain.RoleSuperuser)).Order("id ASC").Limit(1).Find(&supers).Error; err != nil {
			return err
		}
		if len(supers) == 0 {
			return ErrSuperuserMissing
		}
		chat := ChatModel{
			GuestID:   guest.ID,
			Users:     []UserModel{guest, supers[0]},
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Omit("Users.*").Create(&chat).Error; err != nil {
			return err
		}
		chatID = chat.ID
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var winner ChatModel
		if rerr := s.db.WithContext(ctx).Where("guest_id = ?", guestID).First(&winner).Error; rerr != nil {
			return domain.Chat{}, fmt.Errorf("reload guest chat: %w", rerr)
		}
		chatID, err = winner.ID, nil
	}
	if err != nil {
		return domain.Chat{}, err
	}
	chat, ok, err := s.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !ok {
		return domain.Chat{}, fmt.Errorf("chat %d vanished after creation", chatID)
	}
	return chat, nil
}

// ListChats returns a page of chats in id order with participants and messages.
func (s *GormStore) ListChats(ctx context.Context, limit, offset int) ([]domain.Chat, error) {
	var models []ChatModel
	if err := preloadChat(paginate(s.db.WithContext(ctx), limit, offset)).Order("chats.id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return chatsFromModels(models), nil
}

// GetChat returns one chat with participants and ordered messages.
func (s *GormStore) GetChat(ctx context.Context, id int64) (domain.Chat, bool, error) {
	var model ChatModel
	if err := preloadChat(s.db.WithContext(ctx)).First(&model, "chats.id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Chat{}, false, nil
		}
		return domain.Chat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// ListChatsByUser returns chats the account participates in.
func (s *GormStore) ListChatsByUser(ctx context.Context, userID int64) ([]domain.Chat, error) {
	var models []ChatModel
	if err := preloadChat(s.db.WithContext(ctx)).
		Joins("JOIN "+participantsTable+" ON "+participantsTable+".chat_id = chats.id").
		Where(participantsTable+".user_id = ?", userID).
		Order("chats.id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return chatsFromModels(models), nil
}

// DeleteChat removes a chat with its participants, messages, and file rows.
// It returns the deleted chat and the storage paths of the removed files.
func (s *GormStore) DeleteChat(ctx context.Context, id int64) (domain.Chat, []string, bool, error) {
	var (
		deleted ChatModel
		paths   []string
		found   bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := preloadChat(tx).Where("chats.id = ?", id).Limit(1).Find(&deleted).Error; err != nil {
			return err
		}
		if deleted.ID == 0 {
			return nil
		}
		found = true
		msgIDs := tx.Model(&MessageModel{}).Select("id").Where("chat_id = ?", id)
		if err := tx.Model(&FileModel{}).Where("message_id IN (?)", msgIDs).Pluck("path", &paths).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&FileModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM "+participantsTable+" WHERE chat_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ChatModel{}, "id = ?", id).Error
	})
	if err != nil {
		return domain.Chat{}, nil, false, err
	}
	if !found {
		return domain.Chat{}, nil, false, nil
	}
	return chatFromModel(deleted), paths, true, nil
}

// CreateMessage records a message together with its file rows in one transaction.
// CreatedAt defaults to now.
func (s *GormStore) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	model := messageToModel(msg)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	files := model.Files
	model.Files = nil
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files").Create(&model).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].MessageID = model.ID
			if err := createFile(tx, &files[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, translate(err)
	}
	model.Files = files
	return messageFromModel(model), nil
}

// GetMessage returns a message with its files.
func (s *GormStore) GetMessage(ctx context.Context, id int64) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.WithContext(ctx).Preload("Files", orderByID).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// ListMessagesByChat returns a chat transcript in creation order.
func (s *GormStore) ListMessagesByChat(ctx context.Context, chatID int64) ([]domain.Message, error) {
	return s.listMessages(ctx, "chat_id = ?", chatID)
}

// ListMessagesByUser returns messages authored by an account in creation order.
func (s *GormStore) ListMessagesByUser(ctx context.Context, userID int64) ([]domain.Message, error) {
	return s.listMessages(ctx, "user_id = ?", userID)
}

func (s *GormStore) listMessages(ctx context.Context, cond string, arg any) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Preload("Files", orderByID).
		Where(cond, arg).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// DeleteMessages hard-deletes messages and their file rows, returning the file paths.
func (s *GormStore) DeleteMessages(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&FileModel{}).Where("message_id IN ?", ids).Pluck("path", &paths).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN ?", ids).Delete(&FileModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&MessageModel{}).Error
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// CreateFile records an attachment once its bytes are durable.
func (s *GormStore) CreateFile(ctx context.Context, f domain.File) (domain.File, error) {
	model := fileToModel(f)
	if err := createFile(s.db.WithContext(ctx), &model); err != nil {
		return domain.File{}, translate(err)
	}
	return fileFromModel(model), nil
}

// createFile inserts one file row. Used directly and inside CreateMessage's transaction,
// so a duplicate path always fails instead of being skipped by association upserts.
func createFile(db *gorm.DB, model *FileModel) error {
	if model.MessageID == 0 {
		return errors.New("file row requires a message id")
	}
	return db.Create(model).Error
}

// GetFile returns a file row by id.
func (s *GormStore) GetFile(ctx context.Context, id int64) (domain.File, bool, error) {
	return s.findFile(ctx, "id = ?", id)
}

// GetFileByPath returns a file row by its storage path.
func (s *GormStore) GetFileByPath(ctx context.Context, path string) (domain.File, bool, error) {
	return s.findFile(ctx, "path = ?", path)
}

// GetFileForMessage returns a file only if it belongs to the given message.
func (s *GormStore) GetFileForMessage(ctx context.Context, messageID, fileID int64) (domain.File, bool, error) {
	return s.findFile(ctx, "id = ? AND message_id = ?", fileID, messageID)
}

func (s *GormStore) findFile(ctx context.Context, cond string, args ...any) (domain.File, bool, error) {
	var model FileModel
	if err := s.db.WithContext(ctx).Where(cond, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.File{}, false, nil
		}
		return domain.File{}, false, err
	}
	return fileFromModel(model), true, nil
}

// ListFiles returns a page of file rows in id order.
func (s *GormStore) ListFiles(ctx context.Context, limit, offset int) ([]domain.File, error) {
	var models []FileModel
	if err := paginate(s.db.WithContext(ctx), limit, offset).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.File, 0, len(models))
	for _, m := range models {
		res = append(res, fileFromModel(m))
	}
	return res, nil
}

// DeleteFile removes a file row and returns its now-orphaned storage path.
func (s *GormStore) DeleteFile(ctx context.Context, id int64) (string, bool, error) {
	var model FileModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Limit(1).Find(&model).Error; err != nil {
			return err
		}
		if model.ID == 0 {
			return nil
		}
		return tx.Delete(&FileModel{}, "id = ?", id).Error
	})
	if err != nil {
		return "", false, err
	}
	if model.ID == 0 {
		return "", false, nil
	}
	return model.Path, true, nil
}

// UpdateFileSize sets the byte size recorded for a storage path.
func (s *GormStore) UpdateFileSize(ctx context.Context, path string, size int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&FileModel{}).Where("path = ?", path).Update("size", size)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func paginate(db *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return db.Limit(limit).Offset(offset)
}

func preloadChat(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Users", orderByID).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Messages.Files", orderByID)
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role, ok := domain.ParseUserRole(m.Role)
	if !ok {
		role = domain.UserRole(m.Role)
	}
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         role,
		CreatedAt:    m.CreatedAt,
	}
}

func chatsFromModels(models []ChatModel) []domain.Chat {
	res := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		res = append(res, chatFromModel(m))
	}
	return res
}

func chatFromModel(m ChatModel) domain.Chat {
	users := make([]domain.UserName, 0, len(m.Users))
	for _, u := range m.Users {
		users = append(users, userFromModel(u).Name())
	}
	msgs := make([]domain.Message, 0, len(m.Messages))
	for _, msg := range m.Messages {
		msgs = append(msgs, messageFromModel(msg))
	}
	return domain.Chat{
		ID:       m.ID,
		GuestID:  m.GuestID,
		Users:    users,
		Messages: msgs,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	files := make([]FileModel, 0, len(msg.Files))
	for _, f := range msg.Files {
		files = append(files, fileToModel(f))
	}
	return MessageModel{
		ID:        msg.ID,
		Body:      msg.Body,
		ChatID:    msg.ChatID,
		UserID:    msg.UserID,
		CreatedAt: msg.CreatedAt,
		Files:     files,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	files := make([]domain.File, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, fileFromModel(f))
	}
	return domain.Message{
		ID:        m.ID,
		Body:      m.Body,
		ChatID:    m.ChatID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		Files:     files,
	}
}

func fileToModel(f domain.File) FileModel {
	return FileModel{
		ID:        f.ID,
		Name:      f.Name,
		Path:      f.Path,
		Size:      f.Size,
		MessageID: f.MessageID,
	}
}

func fileFromModel(m FileModel) domain.File {
	return domain.File{
		ID:        m.ID,
		Name:      m.Name,
		Path:      m.Path,
		Size:      m.Size,
		MessageID: m.MessageID,
	}
}
