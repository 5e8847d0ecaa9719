package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	PostKeyPrefix      = "post:%s:%d"
	PostGenerationKey  = "post:%s:gen"
	PostListKeyPrefix  = "posts:list:%d:%d:%d"
	PostListGeneration = "posts:list:gen"
	TokenBlacklistKey  = "auth:revoked:%s"
)

const UserTTL = 5 * time.Minute

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// PostKey addresses one post under its generation gen. A read that started
// before a mutation can only write to the generation it read.
func PostKey(postID string, gen int64) string {
	return fmt.Sprintf(PostKeyPrefix, postID, gen)
}

func PostGeneration(postID string) string {
	return fmt.Sprintf(PostGenerationKey, postID)
}

// PostListKey addresses one page of the feed under list generation gen.
// Bumping the generation orphans every cached page at once.
func PostListKey(gen int64, limit, offset int) string {
	return fmt.Sprintf(PostListKeyPrefix, gen, limit, offset)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistKey, jti)
}
