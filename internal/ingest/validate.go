package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/go-playground/validator/v10"
)

// Advisory thresholds for batch-level warnings.
const (
	insecureLinkMinLinks = 5
	insecureLinkRatio    = 0.8
	uniformTypeMinBatch  = 50
)

// recordValidate re-checks structural invariants on built records, whatever
// path produced them. Initialized in init() with the catalog validators.
var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match the file's column names.
	recordValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range map[string]validator.Func{
		"catalog_enum": validateCatalogEnum,
		"scheme_uri":   validateSchemeURI,
	} {
		if err := recordValidate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
}

// validateCatalogEnum accepts values whose type reports itself valid.
func validateCatalogEnum(fl validator.FieldLevel) bool {
	v, ok := fl.Field().Interface().(interface{ Valid() bool })
	return ok && v.Valid()
}

// validateSchemeURI accepts absolute URIs of the form scheme://host/...
func validateSchemeURI(fl validator.FieldLevel) bool {
	return isSchemeURI(fl.Field().String())
}

func isSchemeURI(s string) bool {
	if !strings.Contains(s, "://") || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// validateRecord returns a row-scoped diagnostic for the first violated
// invariant, or nil.
func validateRecord(row int, rec catalog.Record) *Diagnostic {
	if strings.TrimSpace(rec.NaturalKey()) == "" {
		d := newDiagnostic(ClassValidation, row, reasonMissingField, fmt.Sprintf("Row %d: missing required field(s): natural key is empty", row))
		return &d
	}

	err := recordValidate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		d := newDiagnostic(ClassValidation, row, reasonInvalidValue, fmt.Sprintf("Row %d: invalid value: %v", row, err))
		return &d
	}

	fe := verrs[0]
	value := fmt.Sprint(fe.Value())
	var reason, msg string
	switch fe.Tag() {
	case "required":
		reason, msg = reasonMissingField, fmt.Sprintf("missing required field(s): %s", fe.Field())
	case "max":
		reason, msg = reasonTooLong, fmt.Sprintf("%s is too long (max %s)", fe.Field(), fe.Param())
	case "scheme_uri":
		reason, msg = reasonInvalidLink, fmt.Sprintf("invalid link for %q: %q (expected scheme://host/path)", fe.Field(), value)
	case "catalog_enum":
		reason, msg = reasonInvalidEnum, fmt.Sprintf("invalid enum for %q: %q", fe.Field(), value)
	case "gte":
		reason, msg = reasonInvalidNumber, fmt.Sprintf("invalid number for %q: %s must not be negative", fe.Field(), value)
	default:
		reason, msg = reasonInvalidValue, fmt.Sprintf("invalid value for %q: %q fails %s", fe.Field(), value, fe.Tag())
	}

	d := newDiagnostic(ClassValidation, row, reason, fmt.Sprintf("Row %d: %s", row, msg))
	d.Field = fe.Field()
	if fe.Tag() != "max" {
		d.Value = value
	}
	return &d
}

// adviseBatch produces advisory warnings about the batch as a whole. They
// never block persistence.
func adviseBatch[T catalog.Record](def KindDef[T], records []T) []Diagnostic {
	var out []Diagnostic

	if def.LinkOf != nil {
		var links, insecure int
		for _, r := range records {
			link := strings.ToLower(def.LinkOf(r))
			if link == "" {
				continue
			}
			links++
			if strings.HasPrefix(link, "http://") {
				insecure++
			}
		}
		if links >= insecureLinkMinLinks && float64(insecure)/float64(links) > insecureLinkRatio {
			out = append(out, newDiagnostic(ClassValidation, 0, reasonInsecureLinks, fmt.Sprintf(
				"%d of %d links use http:// instead of https://; check the link column", insecure, links)))
		}
	}

	if def.TypeOf != nil && len(records) >= uniformTypeMinBatch {
		first := def.TypeOf(records[0])
		uniform := true
		for _, r := range records[1:] {
			if def.TypeOf(r) != first {
				uniform = false
				break
			}
		}
		if uniform {
			out = append(out, newDiagnostic(ClassValidation, 0, reasonUniformType, fmt.Sprintf(
				"all %d records have type %s; check the type column", len(records), first)))
		}
	}

	return out
}
