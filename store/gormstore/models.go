package gormstore

import "time"

// Status and delete flag values used by the schema.
const (
	StatusNormal   = "0"
	StatusDisabled = "1"
	DelFlagActive  = "0"
	DelFlagDeleted = "2"
)

type SysUser struct {
	UserID      int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
	UserName    string    `gorm:"column:user_name;size:30;uniqueIndex"`
	NickName    string    `gorm:"column:nick_name;size:30"`
	Phonenumber string    `gorm:"column:phonenumber;size:11;index"`
	Email       string    `gorm:"column:email;size:50"`
	Avatar      string    `gorm:"column:avatar;size:255"`
	Password    string    `gorm:"column:password;size:255"`
	Status      string    `gorm:"column:status;size:1;default:0"`
	DelFlag     string    `gorm:"column:del_flag;size:1;default:0"`
	CreateTime  time.Time `gorm:"column:create_time;autoCreateTime"`
}

func (SysUser) TableName() string { return "sys_user" }

type SysRole struct {
	RoleID   int64  `gorm:"column:role_id;primaryKey;autoIncrement"`
	RoleName string `gorm:"column:role_name;size:30"`
	RoleKey  string `gorm:"column:role_key;size:100;uniqueIndex"`
	RoleSort int    `gorm:"column:role_sort"`
	Status   string `gorm:"column:status;size:1;default:0"`
	DelFlag  string `gorm:"column:del_flag;size:1;default:0"`
}

func (SysRole) TableName() string { return "sys_role" }

type SysUserRole struct {
	UserID int64 `gorm:"column:user_id;primaryKey"`
	RoleID int64 `gorm:"column:role_id;primaryKey"`
}

func (SysUserRole) TableName() string { return "sys_user_role" }

// SysMenu is a menu, page or button. Perms holds the permission string, for
// example "system:user:list".
type SysMenu struct {
	MenuID   int64  `gorm:"column:menu_id;primaryKey;autoIncrement"`
	MenuName string `gorm:"column:menu_name;size:50"`
	ParentID int64  `gorm:"column:parent_id"`
	MenuType string `gorm:"column:menu_type;size:1"`
	Perms    string `gorm:"column:perms;size:100"`
	Status   string `gorm:"column:status;size:1;default:0"`
}

func (SysMenu) TableName() string { return "sys_menu" }

type SysRoleMenu struct {
	RoleID int64 `gorm:"column:role_id;primaryKey"`
	MenuID int64 `gorm:"column:menu_id;primaryKey"`
}

func (SysRoleMenu) TableName() string { return "sys_role_menu" }
