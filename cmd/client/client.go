package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"skarn/internal/common"
	skarnNet "skarn/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	instrumentStr := flag.String("instrument", "00000000-0000-0000-0000-000000000001", "Instrument UUID")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'snapshot']")

	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	tifStr := flag.String("tif", "gtc", "Time in force: 'gtc' or 'ioc'")
	price := flag.Int64("price", 100_000, "Limit price, fixed-point integer")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50), fixed-point integer")

	orderID := flag.String("order", "", "Order UUID to cancel")
	limit := flag.Int("limit", 10, "Depth levels to request on a snapshot")

	flag.Parse()

	instrument, err := uuid.Parse(*instrumentStr)
	if err != nil {
		log.Fatalf("invalid -instrument: %v", err)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}

	orderType := common.Limit
	if strings.ToLower(*typeStr) == "market" {
		orderType = common.Market
	}

	tif := common.GTC
	if strings.ToLower(*tifStr) == "ioc" {
		tif = common.IOC
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			limitPrice := common.Price(*price)
			var limitPtr *common.Price
			if orderType == common.Limit {
				limitPtr = &limitPrice
			}
			if err := sendPlaceOrder(conn, instrument, side, orderType, tif, limitPtr, common.Quantity(qty)); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
			} else {
				fmt.Printf("-> sent %s %s qty=%d\n", strings.ToUpper(*sideStr), strings.ToUpper(*typeStr), qty)
			}
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *orderID == "" {
			log.Fatal("error: -order is required for cancellation")
		}
		id, err := uuid.Parse(*orderID)
		if err != nil {
			log.Fatalf("invalid -order: %v", err)
		}
		if err := sendCancelOrder(conn, instrument, id); err != nil {
			log.Printf("failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> sent cancel request for %s\n", id)
		}

	case "snapshot":
		if err := sendSnapshotRequest(conn, instrument, uint16(*limit)); err != nil {
			log.Printf("failed to send snapshot request: %v", err)
		} else {
			fmt.Println("-> sent snapshot request")
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

func sendPlaceOrder(conn net.Conn, instrument uuid.UUID, side common.Side, orderType common.OrderType, tif common.TimeInForce, limitPrice *common.Price, qty common.Quantity) error {
	buf := make([]byte, skarnNet.BaseMessageHeaderLen+skarnNet.NewOrderMessageHeaderLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(skarnNet.NewOrder))
	offset := 2

	copy(buf[offset:offset+16], instrument[:])
	offset += 16
	// The client is its own account for this demo adapter.
	copy(buf[offset:offset+16], uuid.Nil[:])
	offset += 16

	buf[offset] = byte(side)
	offset++
	buf[offset] = byte(orderType)
	offset++
	buf[offset] = byte(tif)
	offset++

	if limitPrice != nil {
		buf[offset] = 1
		offset++
		binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(*limitPrice))
	} else {
		buf[offset] = 0
		offset++
	}
	offset += 8

	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(qty))

	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, instrument, orderID uuid.UUID) error {
	buf := make([]byte, skarnNet.BaseMessageHeaderLen+skarnNet.CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(skarnNet.CancelOrder))
	copy(buf[2:18], instrument[:])
	copy(buf[18:34], orderID[:])

	_, err := conn.Write(buf)
	return err
}

func sendSnapshotRequest(conn net.Conn, instrument uuid.UUID, limit uint16) error {
	buf := make([]byte, skarnNet.BaseMessageHeaderLen+skarnNet.SnapshotRequestMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(skarnNet.SnapshotRequest))
	copy(buf[2:18], instrument[:])
	binary.BigEndian.PutUint16(buf[18:20], limit)

	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and prints Report messages from the server.
func readReports(conn net.Conn) {
	for {
		headerBuf := make([]byte, skarnNet.ReportFixedHeaderLen)
		if _, err := io.ReadFull(conn, headerBuf); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		offset := 0
		msgType := skarnNet.ReportMessageType(headerBuf[offset])
		offset++

		instrument, _ := uuid.FromBytes(headerBuf[offset : offset+16])
		offset += 16
		orderID, _ := uuid.FromBytes(headerBuf[offset : offset+16])
		offset += 16

		side := common.Side(headerBuf[offset])
		offset++

		offset += 8 // timestamp, unused for display
		qty := binary.BigEndian.Uint64(headerBuf[offset : offset+8])
		offset += 8
		price := int64(binary.BigEndian.Uint64(headerBuf[offset : offset+8]))
		offset += 8

		errStrLen := binary.BigEndian.Uint32(headerBuf[offset : offset+4])

		var errStr string
		if errStrLen > 0 {
			errBuf := make([]byte, errStrLen)
			if _, err := io.ReadFull(conn, errBuf); err != nil {
				log.Printf("error reading report body: %v", err)
				return
			}
			errStr = string(errBuf)
		}

		if msgType == skarnNet.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] instrument=%s order=%s: %s\n", instrument, orderID, errStr)
			continue
		}

		sideStr := "BID"
		if side == common.Ask {
			sideStr = "ASK"
		}
		fmt.Printf("\n[EXECUTION] instrument=%s order=%s side=%s qty=%d price=%d\n",
			instrument, orderID, sideStr, qty, price)
	}
}
