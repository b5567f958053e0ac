package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/permission"
	"gorm.io/gorm"
)

// Store reads users, roles and menu permissions from the relational schema.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&SysUser{},
		&SysRole{},
		&SysUserRole{},
		&SysMenu{},
		&SysRoleMenu{},
	)
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (adminauth.UserRecord, error) {
	return s.findUser(ctx, "user_name = ?", identifier)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (adminauth.UserRecord, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return adminauth.UserRecord{}, adminauth.ErrUserNotFound
	}
	return s.findUser(ctx, "user_id = ?", id)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (adminauth.UserRecord, error) {
	if phone == "" {
		return adminauth.UserRecord{}, adminauth.ErrUserNotFound
	}
	return s.findUser(ctx, "phonenumber = ?", phone)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (adminauth.UserRecord, error) {
	var u SysUser
	err := s.db.WithContext(ctx).
		Where(query, arg).
		Where("del_flag = ?", DelFlagActive).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return adminauth.UserRecord{}, adminauth.ErrUserNotFound
	}
	if err != nil {
		return adminauth.UserRecord{}, fmt.Errorf("query sys_user: %w", err)
	}
	return toRecord(u), nil
}

// GetRoles returns the active roles of userID ordered by role_sort.
func (s *Store) GetRoles(ctx context.Context, userID string) ([]adminauth.Role, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, adminauth.ErrUserNotFound
	}

	var rows []SysRole
	err = s.db.WithContext(ctx).
		Table("sys_role r").
		Select("r.*").
		Joins("JOIN sys_user_role ur ON ur.role_id = r.role_id").
		Where("ur.user_id = ? AND r.status = ? AND r.del_flag = ?", id, StatusNormal, DelFlagActive).
		Order("r.role_sort, r.role_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}

	roles := make([]adminauth.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, adminauth.Role{RoleID: r.RoleID, RoleKey: r.RoleKey, RoleName: r.RoleName})
	}
	return roles, nil
}

// GetPermissions returns the menu permission strings reachable through the
// user's roles, or "*:*:*" for admins.
func (s *Store) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.GetRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]int64, 0, len(roles))
	for _, r := range roles {
		if r.RoleKey == permission.AdminRoleKey {
			return []string{permission.AllPermission}, nil
		}
		roleIDs = append(roleIDs, r.RoleID)
	}
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	var perms []string
	err = s.db.WithContext(ctx).
		Table("sys_menu m").
		Distinct("m.perms").
		Joins("JOIN sys_role_menu rm ON rm.menu_id = m.menu_id").
		Where("rm.role_id IN ? AND m.status = ? AND m.perms <> ''", roleIDs, StatusNormal).
		Pluck("m.perms", &perms).Error
	if err != nil {
		return nil, fmt.Errorf("query menu permissions: %w", err)
	}
	sort.Strings(perms)
	return perms, nil
}

// InsertUser inserts u with roleKeys, creating missing roles. It returns the
// new user id.
func (s *Store) InsertUser(ctx context.Context, u SysUser, roleKeys ...string) (int64, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertUser(tx, &u, roleKeys)
	})
	if err != nil {
		return 0, err
	}
	return u.UserID, nil
}

// CreateUser registers a new account. Names of deleted users stay taken.
func (s *Store) CreateUser(ctx context.Context, in adminauth.NewUser) (adminauth.UserRecord, error) {
	u := SysUser{
		UserName: in.UserName,
		NickName: in.NickName,
		Password: in.PasswordHash,
		Status:   StatusNormal,
		DelFlag:  DelFlagActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&SysUser{}).Where("user_name = ?", in.UserName).Count(&n).Error; err != nil {
			return fmt.Errorf("query sys_user: %w", err)
		}
		if n > 0 {
			return adminauth.ErrAccountExists
		}
		return insertUser(tx, &u, in.RoleKeys)
	})
	if err != nil {
		return adminauth.UserRecord{}, err
	}
	return toRecord(u), nil
}

func insertUser(tx *gorm.DB, u *SysUser, roleKeys []string) error {
	if err := tx.Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	for _, key := range roleKeys {
		var role SysRole
		err := tx.Where(SysRole{RoleKey: key}).
			Attrs(SysRole{RoleName: key, Status: StatusNormal, DelFlag: DelFlagActive}).
			FirstOrCreate(&role).Error
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", key, err)
		}
		if err := tx.Create(&SysUserRole{UserID: u.UserID, RoleID: role.RoleID}).Error; err != nil {
			return fmt.Errorf("assign role %s: %w", key, err)
		}
	}
	return nil
}

// BindPhone sets the phone number of userID unless another active user
// holds it.
func (s *Store) BindPhone(ctx context.Context, userID, phone string) error {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return adminauth.ErrUserNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&SysUser{}).
			Where("phonenumber = ? AND user_id <> ? AND del_flag = ?", phone, id, DelFlagActive).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("query sys_user: %w", err)
		}
		if n > 0 {
			return adminauth.ErrPhoneBound
		}
		res := tx.Model(&SysUser{}).
			Where("user_id = ? AND del_flag = ?", id, DelFlagActive).
			Update("phonenumber", phone)
		if res.Error != nil {
			return fmt.Errorf("update sys_user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return adminauth.ErrUserNotFound
		}
		return nil
	})
}

// GrantMenu creates a menu carrying perms and links it to roleKey.
func (s *Store) GrantMenu(ctx context.Context, roleKey, name, perms string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role SysRole
		if err := tx.Where("role_key = ?", roleKey).First(&role).Error; err != nil {
			return fmt.Errorf("find role %s: %w", roleKey, err)
		}
		menu := SysMenu{MenuName: name, MenuType: "F", Perms: perms, Status: StatusNormal}
		if err := tx.Create(&menu).Error; err != nil {
			return fmt.Errorf("create menu: %w", err)
		}
		return tx.Create(&SysRoleMenu{RoleID: role.RoleID, MenuID: menu.MenuID}).Error
	})
}

func toRecord(u SysUser) adminauth.UserRecord {
	return adminauth.UserRecord{
		UserID:       strconv.FormatInt(u.UserID, 10),
		UserName:     u.UserName,
		NickName:     u.NickName,
		Phone:        u.Phonenumber,
		Email:        u.Email,
		Avatar:       u.Avatar,
		PasswordHash: u.Password,
		Disabled:     u.Status == StatusDisabled,
	}
}
