package announcement

type CreateRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required"`
	Image   string `json:"image" binding:"omitempty,url"`
}
