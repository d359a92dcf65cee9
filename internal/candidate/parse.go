package candidate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoImages is returned when there is nothing to probe.
	ErrNoImages = errors.New("no images supplied")

	// ErrAliasedRepository is returned when the first token is a bare
	// repository carrying an alias.
	ErrAliasedRepository = errors.New("bare repository cannot have an alias")

	// ErrMissingTag is returned when a free-form token has no tag.
	ErrMissingTag = errors.New("image is not provided with a tag")

	// ErrRepositoryOverride is returned when a token tries to name its own
	// repository while a fixed repository is in effect.
	ErrRepositoryOverride = errors.New("repository given while processing with fixed repository")

	// ErrMalformed is returned for empty repositories, tags or aliases.
	ErrMalformed = errors.New("malformed image")
)

// Mode is the addressing mode of a batch. It is decided by the first token
// and never changes. The concrete types are FixedRepository and FreeForm.
type Mode interface {
	resolve(token string) (Item, error)
}

// FixedRepository scopes every following token, as a bare tag, to Repository.
type FixedRepository struct {
	Repository string
}

// FreeForm requires every token to be a full "repository:tag", optionally aliased.
type FreeForm struct{}

// ModeOf decides the addressing mode from the first token.
func ModeOf(first string) (Mode, error) {
	alias, spec, aliased := splitAlias(first)
	if first == "" || (aliased && alias == "") {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, first)
	}
	if strings.Contains(spec, ":") {
		return FreeForm{}, nil
	}
	if aliased {
		return nil, fmt.Errorf("%w: %q", ErrAliasedRepository, first)
	}
	return FixedRepository{Repository: first}, nil
}

// Parse turns command-line tokens into candidate items, preserving order.
//
// Supported forms:
//   - "repo" "tag1" "alias=tag2"         -> repo:tag1, alias (repo:tag2)
//   - "repo:tag1" "alias=other:tag2"     -> repo:tag1, alias (other:tag2)
//
// Any malformed token aborts the whole batch.
func Parse(tokens []string) ([]Item, error) {
	if len(tokens) == 0 {
		return nil, ErrNoImages
	}
	mode, err := ModeOf(tokens[0])
	if err != nil {
		return nil, err
	}

	// A fixed repository with no tags yields an empty, non-nil list.
	rest := tokens
	if _, ok := mode.(FixedRepository); ok {
		rest = tokens[1:]
	}

	items := make([]Item, 0, len(rest))
	for _, token := range rest {
		item, err := mode.resolve(token)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (m FixedRepository) resolve(token string) (Item, error) {
	alias, tag, aliased := splitAlias(token)
	if strings.Contains(tag, ":") {
		return Item{}, fmt.Errorf("%w: found repository in %q when processing with fixed repository %q",
			ErrRepositoryOverride, token, m.Repository)
	}
	if tag == "" || (aliased && alias == "") {
		return Item{}, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	return Item{
		DisplayName: alias,
		Image:       ImageReference{Repository: m.Repository, Tag: tag},
	}, nil
}

func (FreeForm) resolve(token string) (Item, error) {
	alias, spec, aliased := splitAlias(token)
	idx := strings.Index(spec, ":")
	if idx == -1 {
		return Item{}, fmt.Errorf("%w: %q", ErrMissingTag, token)
	}
	repo, tag := spec[:idx], spec[idx+1:]
	if repo == "" || tag == "" || strings.Contains(tag, ":") || (aliased && alias == "") {
		return Item{}, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	return Item{
		DisplayName: alias,
		Image:       ImageReference{Repository: repo, Tag: tag},
	}, nil
}

// splitAlias splits "alias=spec" on the first '='.
func splitAlias(token string) (alias, spec string, aliased bool) {
	idx := strings.Index(token, "=")
	if idx == -1 {
		return "", token, false
	}
	return token[:idx], token[idx+1:], true
}
