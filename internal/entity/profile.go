package entity

// Profile represents a marketplace user (homeowner, designer or freelancer)
type Profile struct {
	Id        string `json:"id" gorm:"column:id;primaryKey;type:varchar(64)"`
	FullName  string `json:"full_name" gorm:"column:full_name;type:varchar(128);index"`
	Role      string `json:"role" gorm:"column:role;type:varchar(16);index"`
	Email     string `json:"email" gorm:"column:email;type:varchar(255);uniqueIndex"`
	Password  string `json:"-" gorm:"column:password;type:varchar(255)"`
	Phone     string `json:"phone" gorm:"column:phone;type:varchar(32)"`
	Location  string `json:"location" gorm:"column:location;type:varchar(255)"`
	Bio       string `json:"bio" gorm:"column:bio;type:text"`
	AvatarUrl string `json:"avatar_url" gorm:"column:avatar_url;type:varchar(512)"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// ProfileInfo represents public profile info (without password)
type ProfileInfo struct {
	Id        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ToProfileInfo converts Profile to ProfileInfo
func (p *Profile) ToProfileInfo() *ProfileInfo {
	return &ProfileInfo{
		Id:        p.Id,
		FullName:  p.FullName,
		Role:      p.Role,
		Email:     p.Email,
		Phone:     p.Phone,
		Location:  p.Location,
		Bio:       p.Bio,
		AvatarUrl: p.AvatarUrl,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
