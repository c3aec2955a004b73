package service

import "marketplace_backend/internal/util"

func isNotFound(err error) bool {
	return util.KindOf(err) == util.KindNotFound
}
