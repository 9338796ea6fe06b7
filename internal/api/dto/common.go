package dto

// BaseResponse é o envelope padrão de todas as respostas da API
type BaseResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PaginationResponse envelopa listas paginadas
type PaginationResponse struct {
	BaseResponse
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo descreve a página retornada
type PaginationInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code, message string) *BaseResponse {
	return &BaseResponse{
		Success: false,
		Error:   code,
		Message: message,
	}
}

func NewPaginationResponse(message string, data interface{}, limit, offset, total int) *PaginationResponse {
	return &PaginationResponse{
		BaseResponse: BaseResponse{
			Success: true,
			Message: message,
			Data:    data,
		},
		Pagination: PaginationInfo{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}
}
