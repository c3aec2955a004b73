package repository

import (
	"errors"

	"gorm.io/gorm"
)

// translate 把 gorm 的未找到/唯一冲突错误替换为调用方给出的业务错误
func translate(err, notFound, duplicated error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case duplicated != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicated
	default:
		return err
	}
}
