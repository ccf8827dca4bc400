package database

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息，简历的个人信息直接内联在用户上。
type User struct {
	gorm.Model
	UUID               string `gorm:"uniqueIndex;size:36"`
	Email              string `gorm:"uniqueIndex;size:255"`
	PasswordHash       string `gorm:"size:255"`
	FullName           string `gorm:"size:255"`
	ContactInfo        string `gorm:"size:512"`
	MustChangePassword bool   `gorm:"default:false"`

	Sections   []Section   `gorm:"constraint:OnDelete:CASCADE"`
	Variations []Variation `gorm:"constraint:OnDelete:CASCADE"`
}

// Section 表示简历中的一个命名分组（如 Experience、Education）。
// OrderIndex 在同一用户范围内保持 0..N-1 的稠密排列。
type Section struct {
	gorm.Model
	UUID       string `gorm:"uniqueIndex;size:36"`
	UserID     uint   `gorm:"index"`
	Name       string `gorm:"size:255"`
	OrderIndex int    `gorm:"not null"`

	Jobs []Job `gorm:"constraint:OnDelete:CASCADE"`
}

// Job 表示分组内的一段工作经历，OrderIndex 在所属分组内稠密。
type Job struct {
	gorm.Model
	UUID       string `gorm:"uniqueIndex;size:36"`
	UserID     uint   `gorm:"index"`
	SectionID  uint   `gorm:"index"`
	Title      string `gorm:"size:255"`
	Company    string `gorm:"size:255"`
	StartDate  string `gorm:"size:64"`
	EndDate    string `gorm:"size:64"`
	OrderIndex int    `gorm:"not null"`

	BulletPoints []BulletPoint `gorm:"constraint:OnDelete:CASCADE"`
}

// BulletPoint 表示工作经历下的一条要点，OrderIndex 在所属工作内稠密。
type BulletPoint struct {
	gorm.Model
	UUID       string `gorm:"uniqueIndex;size:36"`
	JobID      uint   `gorm:"index"`
	Content    string
	OrderIndex int `gorm:"not null"`
}

// Variation 是同一份经历池上的一个命名视角：只携带 bio、主题、间距
// 与每条要点的可见性掩码，不复制 jobs/bullets 本身。
// 每个用户至多一个 IsDefault；DefaultVisibility 决定未显式设置的
// (variation, bullet) 对的可见性。DefaultVisibility 不能挂 default
// 标签：GORM 建行时跳过带 default 的零值字段，false 会被数据库默认值
// 顶掉，所以由创建方显式写入。
type Variation struct {
	gorm.Model
	UUID              string `gorm:"uniqueIndex;size:36"`
	UserID            uint   `gorm:"index"`
	Name              string `gorm:"size:255"`
	Bio               string
	Theme             string `gorm:"size:64;default:default"`
	Spacing           string `gorm:"size:64;default:normal"`
	IsDefault         bool   `gorm:"default:false"`
	DefaultVisibility bool
}

// TableName 保持与既有 schema 一致。
func (Variation) TableName() string { return "resume_variations" }

// BulletVisibility 是 (variation, bullet) -> bool 的联结实体。
// 复合主键保证每对至多一行；缺行时回落到 Variation.DefaultVisibility。
type BulletVisibility struct {
	VariationID   uint `gorm:"primaryKey"`
	BulletPointID uint `gorm:"primaryKey"`
	IsVisible     bool `gorm:"not null"`
}

// TableName 保持与既有 schema 一致。
func (BulletVisibility) TableName() string { return "bullet_point_visibility" }

// ExportJob 记录一次异步 PDF 导出：Snapshot 保存入队时刻的渲染输入，
// 之后的编辑不影响已入队的导出。
type ExportJob struct {
	gorm.Model
	UUID        string         `gorm:"uniqueIndex;size:36"`
	UserID      uint           `gorm:"index"`
	VariationID string         `gorm:"size:36;index"`
	Status      string         `gorm:"size:32"`
	ObjectKey   string         `gorm:"size:512"`
	Snapshot    datatypes.JSON `gorm:"type:jsonb"`
}

// ExportJob 状态常量。
const (
	ExportStatusPending = "pending"
	ExportStatusDone    = "done"
	ExportStatusFailed  = "failed"
)

// BeforeCreate 在缺省时补全对外暴露的 UUID。
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
	return nil
}

func (s *Section) BeforeCreate(*gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	return nil
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.UUID == "" {
		j.UUID = uuid.NewString()
	}
	return nil
}

func (b *BulletPoint) BeforeCreate(*gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.NewString()
	}
	return nil
}

func (v *Variation) BeforeCreate(*gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.NewString()
	}
	return nil
}

func (e *ExportJob) BeforeCreate(*gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	return nil
}

// AllModels 列出 AutoMigrate 需要的全部模型。
func AllModels() []any {
	return []any{
		&User{},
		&Section{},
		&Job{},
		&BulletPoint{},
		&Variation{},
		&BulletVisibility{},
		&ExportJob{},
	}
}
