package odm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/cfg"
)

type RuleMode string

const (
	RuleCreate RuleMode = "create"
	RuleUpdate RuleMode = "update"
	RuleDelete RuleMode = "delete"
)

// RulesChecker 保存与删除前的应用规则检查
type RulesChecker interface {
	Check(ctx context.Context, entity *Entity, mode RuleMode, options *SaveOptions) (bool, error)
}

// Rule 检查失败时把 Message 记录到实体的 Field 上
type Rule struct {
	Name    string
	Field   string
	Message string
	Check   func(ctx context.Context, entity *Entity, options *SaveOptions) (bool, error)
}

// Rules 默认的规则集合，Add 注册的规则在所有模式下生效
type Rules struct {
	all    []Rule
	create []Rule
	update []Rule
	delete []Rule
}

func NewRules() *Rules {
	return &Rules{}
}

func (r *Rules) Add(rule Rule) *Rules {
	r.all = append(r.all, rule)
	return r
}

func (r *Rules) AddCreate(rule Rule) *Rules {
	r.create = append(r.create, rule)
	return r
}

func (r *Rules) AddUpdate(rule Rule) *Rules {
	r.update = append(r.update, rule)
	return r
}

func (r *Rules) AddDelete(rule Rule) *Rules {
	r.delete = append(r.delete, rule)
	return r
}

// Check 执行全部规则，任一失败即返回 false，但其余规则仍会执行以收集错误
func (r *Rules) Check(ctx context.Context, entity *Entity, mode RuleMode, options *SaveOptions) (bool, error) {
	rules := append([]Rule(nil), r.all...)
	switch mode {
	case RuleCreate:
		rules = append(rules, r.create...)
	case RuleUpdate:
		rules = append(rules, r.update...)
	case RuleDelete:
		rules = append(rules, r.delete...)
	}

	passed := true
	for _, rule := range rules {
		ok, err := rule.Check(ctx, entity, options)
		if err != nil {
			return false, errors.WithMessagef(err, "rule %s", rule.Name)
		}
		if ok {
			continue
		}
		passed = false
		if rule.Field != "" {
			message := rule.Message
			if message == "" {
				message = "invalid"
			}
			entity.SetError(rule.Field, message)
		}
	}
	return passed, nil
}

// IsUnique 字段组合在集合中唯一；任一字段为 nil 时不检查；更新时排除自身
func IsUnique(c *Collection, fields ...string) Rule {
	field := ""
	if len(fields) > 0 {
		field = fields[0]
	}
	return Rule{
		Name:    "isUnique",
		Field:   field,
		Message: "This value is already in use",
		Check: func(ctx context.Context, entity *Entity, options *SaveOptions) (bool, error) {
			if !entity.IsNew() && !entity.IsDirty(fields...) {
				return true, nil
			}
			values := map[string]any{}
			for _, f := range fields {
				v := entity.Get(f)
				if v == nil {
					return true, nil
				}
				values[f] = v
			}
			conditions, err := c.typedConditions(ctx, values)
			if err != nil {
				return false, err
			}
			if !entity.IsNew() {
				primary, err := c.PrimaryKey(ctx)
				if err != nil {
					return false, err
				}
				self := map[string]any{}
				for _, k := range primary {
					if v := entity.Get(k); v != nil {
						self[k] = v
					}
				}
				excluded, err := c.typedConditions(ctx, self)
				if err != nil {
					return false, err
				}
				for k, v := range excluded {
					if strings.HasSuffix(k, " IN") {
						conditions[strings.TrimSuffix(k, " IN")+" NOT IN"] = v
					} else {
						conditions[k+" !="] = v
					}
				}
			}
			exists, err := c.Exists(ctx, conditions)
			if err != nil {
				return false, err
			}
			return !exists, nil
		},
	}
}

// ExistsIn fields 的值在 target 的 targetFields 中存在；任一字段为 nil 时不检查
func ExistsIn(target *Collection, fields []string, targetFields []string) Rule {
	field := ""
	if len(fields) > 0 {
		field = fields[0]
	}
	return Rule{
		Name:    "existsIn",
		Field:   field,
		Message: "This value does not exist",
		Check: func(ctx context.Context, entity *Entity, options *SaveOptions) (bool, error) {
			if len(fields) != len(targetFields) {
				return false, errors.Errorf("existsIn needs the same number of fields, got %d and %d", len(fields), len(targetFields))
			}
			values := map[string]any{}
			for i, f := range fields {
				v := entity.Get(f)
				if v == nil {
					return true, nil
				}
				values[targetFields[i]] = v
			}
			conditions, err := target.typedConditions(ctx, values)
			if err != nil {
				return false, err
			}
			return target.Exists(ctx, conditions)
		},
	}
}

// Validate 按 validator 标签校验实体字段，错误记录到对应字段上，缺失的字段按 nil 校验
func Validate(tags map[string]string) Rule {
	return Rule{
		Name: "validate",
		Check: func(ctx context.Context, entity *Entity, options *SaveOptions) (bool, error) {
			errs := ValidateMap(entity.Extract(sortedKeys(tags), false), tags)
			entity.SetErrors(errs)
			return len(errs) == 0, nil
		},
	}
}

// ValidateMap 返回 字段 -> 错误信息，没有错误时为空
func ValidateMap(data map[string]any, tags map[string]string) map[string][]string {
	rules := make(map[string]any, len(tags))
	for field, tag := range tags {
		rules[field] = tag
	}
	result := cfg.Validator().ValidateMap(data, rules)

	errs := map[string][]string{}
	for field, v := range result {
		err, ok := v.(error)
		if !ok {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs[field] = append(errs[field], fmt.Sprintf("failed on the '%s' rule", fe.Tag()))
			}
			continue
		}
		errs[field] = append(errs[field], err.Error())
	}
	for _, messages := range errs {
		sort.Strings(messages)
	}
	return errs
}
