//go:build mqclient

package ibmmq

import (
	"context"
	"errors"

	mq "github.com/ibm-messaging/mq-golang/v5/ibmmq"
)

// Concrete client SDK wiring. Requires the IBM MQ client libraries at build
// time (cgo), hence the mqclient build tag.

const utf8CCSID = 1208

type mqQueueManager struct{ qmgr *mq.MQQueueManager }

type mqQueue struct {
	obj  mq.MQObject
	qmgr *mq.MQQueueManager
}

// mqReturnError adapts *mq.MQReturn to the ReasonCodeError the bus
// classifies on.
type mqReturnError struct{ ret *mq.MQReturn }

func (e mqReturnError) Error() string         { return e.ret.Error() }
func (e mqReturnError) Unwrap() error         { return e.ret }
func (e mqReturnError) ReasonCode() int32     { return e.ret.MQRC }
func (e mqReturnError) CompletionCode() int32 { return e.ret.MQCC }

func wrapMQErr(err error) error {
	if err == nil {
		return nil
	}

	var ret *mq.MQReturn
	if errors.As(err, &ret) {
		return mqReturnError{ret: ret}
	}

	return err
}

func connectQueueManager(_ context.Context, cfg Config) (QueueManager, error) {
	cd := mq.NewMQCD()
	cd.ChannelName = cfg.Channel
	cd.ConnectionName = cfg.ConnectionName()

	cno := mq.NewMQCNO()
	cno.ClientConn = cd
	cno.Options = mq.MQCNO_CLIENT_BINDING | mq.MQCNO_HANDLE_SHARE_BLOCK

	if cfg.SSLEnabled {
		cd.SSLCipherSpec = cfg.CipherSpec
		cno.SSLConfig = mq.NewMQSCO()
	}

	if cfg.Username != "" {
		csp := mq.NewMQCSP()
		csp.AuthenticationType = mq.MQCSP_AUTH_USER_ID_AND_PWD
		csp.UserId = cfg.Username
		csp.Password = cfg.Password
		cno.SecurityParms = csp
	}

	qmgr, err := mq.Connx(cfg.QueueManager, cno)
	if err != nil {
		return nil, wrapMQErr(err)
	}

	return &mqQueueManager{qmgr: &qmgr}, nil
}

func (m *mqQueueManager) OpenQueue(name string) (Queue, error) {
	return m.open(name, mq.MQOO_OUTPUT|mq.MQOO_FAIL_IF_QUIESCING)
}

func (m *mqQueueManager) OpenQueueForInquiry(name string) (Queue, error) {
	return m.open(name, mq.MQOO_INQUIRE|mq.MQOO_FAIL_IF_QUIESCING)
}

func (m *mqQueueManager) open(name string, options int32) (Queue, error) {
	od := mq.NewMQOD()
	od.ObjectType = mq.MQOT_Q
	od.ObjectName = name

	obj, err := m.qmgr.Open(od, options)
	if err != nil {
		return nil, wrapMQErr(err)
	}

	return &mqQueue{obj: obj, qmgr: m.qmgr}, nil
}

func (m *mqQueueManager) Disconnect() error {
	return wrapMQErr(m.qmgr.Disc())
}

func (q *mqQueue) Put(msg Message) error {
	md := mq.NewMQMD()
	md.Format = mq.MQFMT_STRING
	md.CodedCharSetId = utf8CCSID
	md.Persistence = mq.MQPER_PERSISTENT
	md.MsgId = truncateID(msg.MessageID)
	md.CorrelId = truncateID(msg.CorrelationID)

	pmo := mq.NewMQPMO()
	pmo.Options = mq.MQPMO_NO_SYNCPOINT | mq.MQPMO_FAIL_IF_QUIESCING

	if len(msg.Properties) > 0 {
		handle, err := q.qmgr.CrtMH(mq.NewMQCMHO())
		if err != nil {
			return wrapMQErr(err)
		}
		defer func() { _ = handle.DltMH(mq.NewMQDMHO()) }()

		smpo := mq.NewMQSMPO()
		pd := mq.NewMQPD()

		for k, v := range msg.Properties {
			if err := handle.SetMP(smpo, k, pd, v); err != nil {
				return wrapMQErr(err)
			}
		}

		pmo.OriginalMsgHandle = handle
	}

	return wrapMQErr(q.obj.Put(md, pmo, msg.Body))
}

func (q *mqQueue) Depth() (int, error) {
	values, err := q.obj.Inq([]int32{mq.MQIA_CURRENT_Q_DEPTH})
	if err != nil {
		return 0, wrapMQErr(err)
	}

	depth, ok := values[mq.MQIA_CURRENT_Q_DEPTH].(int32)
	if !ok {
		return 0, errors.New("ibmmq: queue depth attribute missing")
	}

	return int(depth), nil
}

func (q *mqQueue) Close() error {
	return wrapMQErr(q.obj.Close(0))
}

// truncateID fits an id into the 24-byte MQ message id field.
func truncateID(id string) []byte {
	b := []byte(id)
	if len(b) > 24 {
		b = b[:24]
	}

	return b
}

func init() { defaultConnector = connectQueueManager }
