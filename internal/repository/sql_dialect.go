package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func isPostgresDialect(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}

// forUpdate 行级锁，sqlite 整库串行写入，无需也不支持 FOR UPDATE。
func forUpdate(db *gorm.DB) *gorm.DB {
	if isPostgresDialect(dbDialectName(db)) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func likeOperatorByDialect(dialect string) string {
	if isPostgresDialect(dialect) {
		return "ILIKE"
	}
	return "LIKE"
}

// buildLikeCondition 构建多列 LIKE 条件，并返回参数数量。
func buildLikeCondition(db *gorm.DB, columns []string) (string, int) {
	return buildLikeConditionByDialect(dbDialectName(db), columns)
}

func buildLikeConditionByDialect(dialect string, columns []string) (string, int) {
	parts := make([]string, 0, len(columns))
	operator := likeOperatorByDialect(dialect)
	for _, column := range columns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", trimmed, operator))
	}
	return strings.Join(parts, " OR "), len(parts)
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}

// idListContainsCondition JSON 数组列（例如 [1,2,3]）按边界匹配指定 ID，避免 1 命中 11。
func idListContainsCondition(column string, id uint) (string, []interface{}) {
	condition := fmt.Sprintf("(%[1]s = ? OR %[1]s LIKE ? OR %[1]s LIKE ? OR %[1]s LIKE ?)", column)
	args := []interface{}{
		fmt.Sprintf("[%d]", id),
		fmt.Sprintf("[%d,%%", id),
		fmt.Sprintf("%%,%d,%%", id),
		fmt.Sprintf("%%,%d]", id),
	}
	return condition, args
}
