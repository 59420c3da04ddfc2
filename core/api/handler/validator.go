package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/tanush-em/ERP/core/common"
)

// validate dùng chung cho các input struct của handler
var validate = validator.New()

// validateInput kiểm tra input theo tag `validate`, trả về lỗi định dạng chuẩn
func validateInput(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		return common.NewError(common.ErrCodeValidationInput, "Dữ liệu gửi lên không hợp lệ: "+err.Error(), common.StatusBadRequest, err)
	}
	return nil
}
