package model

// CourseInfo 本地缓存的课程元数据，自然键为 (course_id, bpp_id)
type CourseInfo struct {
	BaseModel
	CourseID     string     `gorm:"size:64;not null;uniqueIndex:ux_course_bpp,priority:1" json:"courseId"`
	BppID        string     `gorm:"size:191;not null;uniqueIndex:ux_course_bpp,priority:2" json:"bppId"`
	BppURI       string     `gorm:"size:255" json:"bppUri"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Credits      int        `gorm:"not null;default:0" json:"credits"`
	ImageLink    string     `gorm:"size:512" json:"imageLink"`
	Language     []string   `gorm:"type:text;serializer:json" json:"language"`
	ProviderID   string     `gorm:"size:64" json:"providerId"`
	ProviderName string     `gorm:"size:255" json:"providerName"`
	Author       string     `gorm:"size:255" json:"author"`
	AvgRating    *float64   `json:"avgRating"`
	Competency   Competency `gorm:"type:text;serializer:json" json:"competency"`
	CourseLink   *string    `gorm:"size:512" json:"courseLink"`

	// 查询时由购买记录计数得出，不落库
	NumberOfPurchases int64 `gorm:"->;-:migration" json:"numberOfPurchases"`
}

func (CourseInfo) TableName() string {
	return "course_infos"
}

// IsExternal 课程是否由外部 BPP 提供（需要经 BAP 路由）
func (c *CourseInfo) IsExternal(platformBppID string) bool {
	return c.BppID != "" && c.BppURI != "" && c.BppID != platformBppID
}

// CourseSnapshot 结算记录中保存的课程快照，用于补偿任务重放本地写入
type CourseSnapshot struct {
	CourseID     string     `json:"courseId"`
	BppID        string     `json:"bppId"`
	BppURI       string     `json:"bppUri"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Credits      int        `json:"credits"`
	ImageLink    string     `json:"imageLink"`
	Language     []string   `json:"language"`
	ProviderID   string     `json:"providerId"`
	ProviderName string     `json:"providerName"`
	Author       string     `json:"author"`
	AvgRating    *float64   `json:"avgRating,omitempty"`
	Competency   Competency `json:"competency"`
	CourseLink   *string    `json:"courseLink,omitempty"`
}

func (c *CourseInfo) Snapshot() CourseSnapshot {
	return CourseSnapshot{
		CourseID:     c.CourseID,
		BppID:        c.BppID,
		BppURI:       c.BppURI,
		Title:        c.Title,
		Description:  c.Description,
		Credits:      c.Credits,
		ImageLink:    c.ImageLink,
		Language:     c.Language,
		ProviderID:   c.ProviderID,
		ProviderName: c.ProviderName,
		Author:       c.Author,
		AvgRating:    c.AvgRating,
		Competency:   c.Competency,
		CourseLink:   c.CourseLink,
	}
}

func (s CourseSnapshot) CourseInfo() *CourseInfo {
	return &CourseInfo{
		CourseID:     s.CourseID,
		BppID:        s.BppID,
		BppURI:       s.BppURI,
		Title:        s.Title,
		Description:  s.Description,
		Credits:      s.Credits,
		ImageLink:    s.ImageLink,
		Language:     s.Language,
		ProviderID:   s.ProviderID,
		ProviderName: s.ProviderName,
		Author:       s.Author,
		AvgRating:    s.AvgRating,
		Competency:   s.Competency,
		CourseLink:   s.CourseLink,
	}
}
