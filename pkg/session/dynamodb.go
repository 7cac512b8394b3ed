package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"comitebot/pkg/action"
)

// dynamodbAPI is the subset of the DynamoDB client the store needs.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBStore keeps one item per user keyed by "PK" = USER#<id>. The "ttl"
// attribute lets the table expire abandoned sessions.
type DynamoDBStore struct {
	api       dynamodbAPI
	tableName string
	opts      options
}

func NewDynamoDBStore(api dynamodbAPI, tableName string, opts ...Option) (*DynamoDBStore, error) {
	if api == nil {
		return nil, errors.New("session: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("session: dynamodb table name must not be empty")
	}
	return &DynamoDBStore{api: api, tableName: tableName, opts: buildOptions(opts)}, nil
}

func userPK(userID int64) string {
	return "USER#" + strconv.FormatInt(userID, 10)
}

func (s *DynamoDBStore) key(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
	}
}

func (s *DynamoDBStore) Open(ctx context.Context, userID int64, typ action.Type) (Session, error) {
	sess := Session{UserID: userID, Action: typ, CreatedAt: s.opts.now().UTC()}

	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: userPK(userID)},
		"userId":    &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
		"action":    &types.AttributeValueMemberS{Value: string(typ)},
		"createdAt": &types.AttributeValueMemberS{Value: sess.CreatedAt.Format(time.RFC3339Nano)},
	}
	if s.opts.ttl > 0 {
		expires := sess.CreatedAt.Add(s.opts.ttl).Unix()
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)}
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: open %d: %w", userID, err)
	}
	return sess, nil
}

func (s *DynamoDBStore) Take(ctx context.Context, userID int64) (Session, bool, error) {
	sess, ok, err := s.delete(ctx, userID)
	if err != nil {
		return Session{}, false, fmt.Errorf("session: take %d: %w", userID, err)
	}
	// The table TTL runs lazily, so expired items can still be returned.
	if !ok || sess.Expired(s.opts.now(), s.opts.ttl) {
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *DynamoDBStore) Clear(ctx context.Context, userID int64) (bool, error) {
	sess, ok, err := s.delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("session: clear %d: %w", userID, err)
	}
	return ok && !sess.Expired(s.opts.now(), s.opts.ttl), nil
}

func (s *DynamoDBStore) delete(ctx context.Context, userID int64) (Session, bool, error) {
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          s.key(userID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return Session{}, false, err
	}
	if out == nil || len(out.Attributes) == 0 {
		return Session{}, false, nil
	}

	sess, err := itemToSession(userID, out.Attributes)
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

func itemToSession(userID int64, item map[string]types.AttributeValue) (Session, error) {
	typ, err := strAttr(item, "action")
	if err != nil {
		return Session{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return Session{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Session{}, fmt.Errorf("parse attribute %q: %w", "createdAt", err)
	}

	return Session{UserID: userID, Action: action.Type(typ), CreatedAt: createdAt}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func (s *DynamoDBStore) Close() error {
	return nil
}
