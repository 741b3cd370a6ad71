package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

const guardPrefix = "username#"

// Store encapsulates operations on the users table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new users Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

func guardKey(username string) string {
	return guardPrefix + strings.ToLower(strings.TrimSpace(username))
}

// Create persists u with a fresh id. Usernames are unique ignoring case;
// a taken name yields ErrUsernameTaken.
func (s *Store) Create(ctx context.Context, u User) (*User, error) {
	now := s.nowFunc().UTC()
	u.ID = s.newID()
	u.Username = strings.TrimSpace(u.Username)
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}

	userItem, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	guardItem, err := attributevalue.MarshalMap(usernameGuard{Key: guardKey(u.Username), OwnerID: u.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal username guard: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                guardItem,
					ConditionExpression: awsString("attribute_not_exists(user_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                userItem,
					ConditionExpression: awsString("attribute_not_exists(user_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 &&
			awsValue(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("transact write user: %w", err)
	}
	return &u, nil
}

// Get fetches a user by id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	if strings.HasPrefix(id, guardPrefix) {
		return nil, ErrNotFound
	}
	var u User
	found, err := s.getItem(ctx, id, &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GetByUsername resolves a username (ignoring case) through its guard item.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	var g usernameGuard
	found, err := s.getItem(ctx, guardKey(username), &g)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return s.Get(ctx, g.OwnerID)
}

func (s *Store) getItem(ctx context.Context, key string, out interface{}) (bool, error) {
	res, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return false, fmt.Errorf("get item: %w", err)
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal user: %w", err)
	}
	return true, nil
}

func awsString(s string) *string { return &s }

func awsValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
